// SPDX-License-Identifier: MPL-2.0

package deployconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
)

// Format identifies the syntax of a deploy config file.
type Format string

const (
	// FormatJSONC covers both .jsonc and plain .json files.
	FormatJSONC Format = "jsonc"
	// FormatTOML is the TOML syntax.
	FormatTOML Format = "toml"
)

var (
	// ErrNotFound is returned when no deploy config exists in a directory.
	ErrNotFound = errors.New("deploy config not found")

	// ErrUnsupportedFormat is returned for files that are neither JSON(C)
	// nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported deploy config format")

	// ErrNoMain is returned when a deploy config names no entry module.
	ErrNoMain = errors.New("deploy config has no main entry")
)

// CandidateNames are the file names looked up in the project root, in
// priority order.
var CandidateNames = []string{"wrangler.jsonc", "wrangler.json", "wrangler.toml"}

type (
	// Config is the subset of the deploy configuration workerstitch reads
	// and adjusts. Unknown keys are kept in Extra so the configuration can
	// be round-tripped to the runtime.
	Config struct {
		// Path is the file the config was loaded from.
		Path string `mapstructure:"-"`
		// Format is the syntax of Path.
		Format Format `mapstructure:"-"`

		Name               string           `mapstructure:"name"`
		Main               string           `mapstructure:"main"`
		CompatibilityDate  string           `mapstructure:"compatibility_date"`
		CompatibilityFlags []string         `mapstructure:"compatibility_flags"`
		Assets             *Assets          `mapstructure:"assets"`
		DurableObjects     *DurableObjects  `mapstructure:"durable_objects"`
		Migrations         []map[string]any `mapstructure:"migrations"`
		Extra              map[string]any   `mapstructure:",remain"`
	}

	// Assets configures the static-asset binding.
	Assets struct {
		Binding   string `mapstructure:"binding"`
		Directory string `mapstructure:"directory"`
		// RunWorkerFirst is a bool or a list of route patterns; nil when
		// unset.
		RunWorkerFirst any            `mapstructure:"run_worker_first"`
		Extra          map[string]any `mapstructure:",remain"`
	}

	// DurableObjects lists Durable Object namespace bindings.
	DurableObjects struct {
		Bindings []DurableObjectBinding `mapstructure:"bindings"`
		Extra    map[string]any         `mapstructure:",remain"`
	}

	// DurableObjectBinding binds one Durable Object class.
	DurableObjectBinding struct {
		Name       string         `mapstructure:"name"`
		ClassName  string         `mapstructure:"class_name"`
		ScriptName string         `mapstructure:"script_name"`
		Extra      map[string]any `mapstructure:",remain"`
	}

	// ParseError reports a deploy config that could not be decoded.
	ParseError struct {
		Path string
		Err  error
	}
)

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse deploy config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc", ".json":
		return FormatJSONC, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Find returns the deploy config path. An explicit path is resolved against
// root and must exist; otherwise the first CandidateNames entry present in
// root wins.
func Find(root, explicit string) (string, error) {
	if explicit != "" {
		p := explicit
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, p)
			}
			return "", err
		}
		return p, nil
	}

	for _, name := range CandidateNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, root)
}

// Load reads and decodes the deploy config at path.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deploy config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.Path = path
	return cfg, nil
}

// Resolve finds and loads the project's deploy config. Without an explicit
// path, a project that has none gets an empty Config.
func Resolve(root, explicit string) (*Config, error) {
	path, err := Find(root, explicit)
	if err != nil {
		if explicit == "" && errors.Is(err, ErrNotFound) {
			return &Config{}, nil
		}
		return nil, err
	}
	return Load(path)
}

// Parse decodes deploy config text of the given format.
func Parse(data []byte, format Format) (*Config, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Format: format}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeRaw(data []byte, format Format) (map[string]any, error) {
	raw := map[string]any{}
	switch format {
	case FormatJSONC:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, &raw); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return raw, nil
}

// ToMap renders the config back into the generic shape the runtime reads.
// Empty fields are omitted.
func (c *Config) ToMap() map[string]any {
	out := maps.Clone(c.Extra)
	if out == nil {
		out = map[string]any{}
	}
	setString(out, "name", c.Name)
	setString(out, "main", c.Main)
	setString(out, "compatibility_date", c.CompatibilityDate)
	if len(c.CompatibilityFlags) > 0 {
		out["compatibility_flags"] = c.CompatibilityFlags
	}
	if c.Assets != nil {
		a := cloneOrNew(c.Assets.Extra)
		setString(a, "binding", c.Assets.Binding)
		setString(a, "directory", c.Assets.Directory)
		if c.Assets.RunWorkerFirst != nil {
			a["run_worker_first"] = c.Assets.RunWorkerFirst
		}
		out["assets"] = a
	}
	if c.DurableObjects != nil {
		d := cloneOrNew(c.DurableObjects.Extra)
		bindings := make([]map[string]any, 0, len(c.DurableObjects.Bindings))
		for _, b := range c.DurableObjects.Bindings {
			m := cloneOrNew(b.Extra)
			setString(m, "name", b.Name)
			setString(m, "class_name", b.ClassName)
			setString(m, "script_name", b.ScriptName)
			bindings = append(bindings, m)
		}
		d["bindings"] = bindings
		out["durable_objects"] = d
	}
	if len(c.Migrations) > 0 {
		out["migrations"] = c.Migrations
	}
	return out
}

func setString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func cloneOrNew(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
