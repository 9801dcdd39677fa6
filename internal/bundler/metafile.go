// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type (
	// Metafile is the subset of esbuild's metafile JSON read by workerstitch.
	Metafile struct {
		Inputs  map[string]MetafileInput  `json:"inputs"`
		Outputs map[string]MetafileOutput `json:"outputs"`
	}

	// MetafileInput describes one input module.
	MetafileInput struct {
		Bytes   int              `json:"bytes"`
		Imports []MetafileImport `json:"imports"`
		Format  string           `json:"format,omitempty"`
	}

	// MetafileImport describes one import edge.
	MetafileImport struct {
		Path     string `json:"path"`
		Kind     string `json:"kind"`
		External bool   `json:"external,omitempty"`
		Original string `json:"original,omitempty"`
	}

	// MetafileOutput describes one emitted file and its export table.
	MetafileOutput struct {
		Bytes      int              `json:"bytes"`
		Imports    []MetafileImport `json:"imports"`
		Exports    []string         `json:"exports"`
		EntryPoint string           `json:"entryPoint,omitempty"`
	}
)

// ParseMetafile decodes esbuild metafile JSON.
func ParseMetafile(data string) (*Metafile, error) {
	var mf Metafile
	if err := json.Unmarshal([]byte(data), &mf); err != nil {
		return nil, fmt.Errorf("decode metafile: %w", err)
	}
	return &mf, nil
}

// EntryExports returns the export table of the output generated for an entry
// point. Source maps and CSS side outputs are ignored.
func (m *Metafile) EntryExports() ([]string, error) {
	keys := make([]string, 0, len(m.Outputs))
	for k := range m.Outputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		out := m.Outputs[k]
		if out.EntryPoint == "" || strings.HasSuffix(k, ".map") {
			continue
		}
		return slices.Clone(out.Exports), nil
	}
	return nil, fmt.Errorf("metafile has no entry point output (%d outputs)", len(m.Outputs))
}

// ExternalImports lists the distinct external import paths across inputs.
func (m *Metafile) ExternalImports() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range m.Inputs {
		for _, imp := range in.Imports {
			if !imp.External {
				continue
			}
			if _, ok := seen[imp.Path]; ok {
				continue
			}
			seen[imp.Path] = struct{}{}
			out = append(out, imp.Path)
		}
	}
	slices.Sort(out)
	return out
}
