// SPDX-License-Identifier: MPL-2.0

package deployconfig

import (
	"path/filepath"
)

// BundleLocation is where the adapter's production bundle lives.
type BundleLocation struct {
	// Path is the absolute bundle path.
	Path string
	// ConfigPath is the deploy config that named the bundle, or "" when the
	// fallback was used.
	ConfigPath string
	// Reason explains why the fallback was used. It is nil when the bundle
	// came from the deploy config.
	Reason error
}

// FromConfig reports whether the bundle path came from the deploy config.
func (l BundleLocation) FromConfig() bool { return l.Reason == nil }

// ResolveBundle locates the production bundle. The deploy config's main
// entry wins, resolved relative to the config file; a missing, unreadable or
// unparseable config, or one without main, falls back to fallback resolved
// against root. It never fails.
func ResolveBundle(root, explicit, fallback string) BundleLocation {
	useFallback := func(reason error) BundleLocation {
		p := fallback
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		return BundleLocation{Path: filepath.Clean(p), Reason: reason}
	}

	path, err := Find(root, explicit)
	if err != nil {
		return useFallback(err)
	}
	cfg, err := Load(path)
	if err != nil {
		return useFallback(err)
	}
	if cfg.Main == "" {
		return useFallback(ErrNoMain)
	}

	main := filepath.FromSlash(cfg.Main)
	if !filepath.IsAbs(main) {
		main = filepath.Join(filepath.Dir(path), main)
	}
	return BundleLocation{Path: filepath.Clean(main), ConfigPath: path}
}
