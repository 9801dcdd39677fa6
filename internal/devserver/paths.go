// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"path/filepath"

	"github.com/workerstitch/workerstitch/internal/entry"
)

// DefaultGeneratedDir is used when Options.GeneratedDir is empty.
const DefaultGeneratedDir = ".workerstitch"

// GeneratedDir returns the absolute generated-artifacts directory.
func GeneratedDir(root, dir string) string {
	if dir == "" {
		dir = DefaultGeneratedDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// EntryPath returns the fixed dev entry location for a project. It does not
// depend on the worker's content.
func EntryPath(root, dir string) string {
	return entry.Path(GeneratedDir(root, dir))
}
