// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrBundleFailed is wrapped by every BundleError.
var ErrBundleFailed = errors.New("bundle failed")

type (
	// Options holds the resolution rules shared by classification and
	// artifact builds.
	Options struct {
		// Externals are import specifiers left unresolved. A single "*"
		// wildcard is allowed, e.g. "cloudflare:*".
		Externals []string
		// Conditions are the package.json export conditions to honor.
		Conditions []string
	}

	// Request describes one bundling pass. Exactly one of EntryPath and
	// Source must be set.
	Request struct {
		// EntryPath is the module to bundle.
		EntryPath string
		// Source is module text bundled instead of a file.
		Source string
		// SourceName names Source in diagnostics and selects its loader.
		SourceName string
		// ResolveDir anchors relative imports of Source.
		ResolveDir string
		// Outfile is where the artifact goes. Classification passes leave
		// it empty and nothing is written.
		Outfile string
		// Options are the resolution rules.
		Options Options
	}

	// OutputFile is one emitted file.
	OutputFile struct {
		Path     string
		Contents []byte
	}

	// Result is the outcome of a successful pass.
	Result struct {
		// Exports are the entry module's export names from the metafile.
		Exports []string
		// Files are the emitted files. They are already on disk when the
		// request had an Outfile.
		Files []OutputFile
		// Warnings are formatted bundler warnings.
		Warnings []string
		// Metafile is the decoded build metadata.
		Metafile *Metafile
	}

	// BundleError reports bundler diagnostics for an entry module.
	// It wraps ErrBundleFailed for errors.Is() compatibility.
	BundleError struct {
		Entry    string
		Messages []string
	}

	// Esbuild is the esbuild-backed bundler.
	Esbuild struct{}
)

// DefaultOptions returns the workerd-targeted resolution rules.
func DefaultOptions() Options {
	return Options{
		Externals:  []string{"cloudflare:*", "node:*", "__STATIC_CONTENT_MANIFEST"},
		Conditions: []string{"workerd", "worker", "browser"},
	}
}

func (e *BundleError) Error() string {
	msg := fmt.Sprintf("bundle %s", e.Entry)
	if len(e.Messages) == 0 {
		return msg + ": unknown error"
	}
	return msg + ":\n" + strings.Join(e.Messages, "\n")
}

// Unwrap returns ErrBundleFailed so callers can use errors.Is.
func (e *BundleError) Unwrap() error { return ErrBundleFailed }

// New creates an esbuild-backed bundler.
func New() *Esbuild {
	return &Esbuild{}
}

// Bundle runs one esbuild pass. The metafile is always requested so the
// caller gets the entry's export table alongside any emitted files.
func (b *Esbuild) Bundle(ctx context.Context, req Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("bundle canceled: %w", ctx.Err())
	default:
	}

	opts, entry, err := buildOptions(req)
	if err != nil {
		return nil, err
	}

	res := api.Build(opts)
	if len(res.Errors) > 0 {
		return nil, &BundleError{
			Entry: entry,
			Messages: api.FormatMessages(res.Errors, api.FormatMessagesOptions{
				Kind: api.ErrorMessage,
			}),
		}
	}

	mf, err := ParseMetafile(res.Metafile)
	if err != nil {
		return nil, err
	}
	names, err := mf.EntryExports()
	if err != nil {
		return nil, &BundleError{Entry: entry, Messages: []string{err.Error()}}
	}

	out := &Result{
		Exports: names,
		Metafile: mf,
		Warnings: api.FormatMessages(res.Warnings, api.FormatMessagesOptions{
			Kind: api.WarningMessage,
		}),
	}
	for _, f := range res.OutputFiles {
		out.Files = append(out.Files, OutputFile{Path: f.Path, Contents: f.Contents})
	}

	if req.Outfile != "" {
		if err := writeOutputs(out.Files); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// buildOptions translates a Request into esbuild options and returns the
// display name of the entry for diagnostics.
func buildOptions(req Request) (api.BuildOptions, string, error) {
	hasPath := req.EntryPath != ""
	hasSource := req.Source != ""
	if hasPath == hasSource {
		return api.BuildOptions{}, "", errors.New("bundle request needs exactly one of EntryPath or Source")
	}

	opts := api.BuildOptions{
		Bundle:     true,
		Write:      false,
		Metafile:   true,
		Format:     api.FormatESModule,
		Platform:   api.PlatformNeutral,
		Target:     api.ES2022,
		MainFields: []string{"browser", "module", "main"},
		Conditions: slices.Clone(req.Options.Conditions),
		External:   slices.Clone(req.Options.Externals),
		LogLevel:   api.LogLevelSilent,
	}

	entry := req.EntryPath
	workDir := req.ResolveDir
	if hasPath {
		abs, err := filepath.Abs(req.EntryPath)
		if err != nil {
			return api.BuildOptions{}, "", fmt.Errorf("resolve entry %q: %w", req.EntryPath, err)
		}
		entry = abs
		opts.EntryPoints = []string{abs}
		if workDir == "" {
			workDir = filepath.Dir(abs)
		}
	} else {
		name := req.SourceName
		if name == "" {
			name = "worker.ts"
		}
		entry = name
		opts.Stdin = &api.StdinOptions{
			Contents:   req.Source,
			ResolveDir: workDir,
			Sourcefile: name,
			Loader:     loaderFor(name),
		}
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return api.BuildOptions{}, "", fmt.Errorf("determine working directory: %w", err)
		}
		workDir = wd
	}
	opts.AbsWorkingDir = workDir

	// A classification pass still needs a named output so the metafile
	// reports it; with Write off nothing reaches the disk.
	opts.Outfile = req.Outfile
	if opts.Outfile == "" {
		opts.Outfile = filepath.Join(workDir, "__workerstitch_classify.js")
	}
	return opts, entry, nil
}

func loaderFor(name string) api.Loader {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

func writeOutputs(files []OutputFile) error {
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(f.Path, f.Contents, 0o644); err != nil {
			return fmt.Errorf("write bundle output %s: %w", f.Path, err)
		}
	}
	return nil
}
