// SPDX-License-Identifier: MPL-2.0

package entry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/jssyntax"
)

const (
	// FileName is the dev entry module's file name inside the generated
	// artifacts directory.
	FileName = "worker-entry.js"

	// Header is the first line of every file workerstitch generates.
	Header = "// Generated by workerstitch. Do not edit."

	devNamespace = "worker"
)

// sourceExtensions are stripped from import specifiers; the runtime's module
// resolver infers them.
var sourceExtensions = []string{".ts", ".mts", ".cts", ".tsx", ".js", ".mjs", ".cjs", ".jsx"}

// Synthesizer renders and writes the dev entry module.
type Synthesizer struct {
	// Dir is the generated-artifacts directory (absolute).
	Dir string
	// AssetsBinding names the static-asset binding used as the fetch fallback.
	AssetsBinding string
}

// Path returns the dev entry location for a generated-artifacts directory.
// It depends only on dir so runtime configuration can reference it before
// the content exists.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// ImportPath turns target into a specifier relative to fromDir: forward
// slashes, an explicit "./" or "../" prefix, and no source extension.
func ImportPath(fromDir, target string) string {
	p := target
	if filepath.IsAbs(target) {
		if rel, err := filepath.Rel(fromDir, target); err == nil {
			p = rel
		}
	}
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "./") && !strings.HasPrefix(p, "../") {
		p = "./" + strings.TrimPrefix(p, "/")
	}

	ext := filepath.Ext(p)
	for _, candidate := range sourceExtensions {
		if strings.EqualFold(ext, candidate) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

// Render returns the dev entry module for rec, importing the worker module at
// workerPath.
func (s Synthesizer) Render(rec exports.Record, workerPath string) string {
	specifier := ImportPath(s.Dir, workerPath)
	comp := Composition{
		Namespace: devNamespace,
		Specifier: specifier,
		Record:    rec,
		Fallback:  AssetsFallback(s.AssetsBinding),
	}

	var sb strings.Builder
	sb.WriteString(Header + "\n")
	fmt.Fprintf(&sb, "import * as %s from %s;\n", devNamespace, JSString(specifier))
	if re := comp.ReExports(); re != "" {
		sb.WriteString(re)
	}
	sb.WriteString("\n")
	sb.WriteString(comp.DefaultExport())
	return sb.String()
}

// Write renders the dev entry, checks its syntax and writes it to Path(s.Dir).
// The file is left untouched when its content is already current. It returns
// the entry path.
func (s Synthesizer) Write(ctx context.Context, rec exports.Record, workerPath string) (string, error) {
	path := Path(s.Dir)
	src := []byte(s.Render(rec, workerPath))

	if err := jssyntax.Validate(ctx, path, src); err != nil {
		return "", fmt.Errorf("generated entry is not valid JavaScript: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, src) {
		return path, nil
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create generated directory: %w", err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", fmt.Errorf("write dev entry: %w", err)
	}
	return path, nil
}
