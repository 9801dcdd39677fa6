// SPDX-License-Identifier: MPL-2.0

// Package project resolves the project root and the user's worker module.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultWorker is the worker module looked up when none is configured.
const DefaultWorker = "src/worker.ts"

// ErrWorkerIsDirectory is returned when the worker path names a directory.
var ErrWorkerIsDirectory = errors.New("worker path is a directory")

// sourceExtensions are tried, in order, for a worker path without one.
var sourceExtensions = []string{".ts", ".mts", ".js", ".mjs"}

// Worker is a resolved worker module location.
type Worker struct {
	// Path is absolute. It is set even when the module does not exist.
	Path string
	// Exists reports whether Path is a regular file.
	Exists bool
}

// Root returns the absolute project root. An empty dir means the current
// working directory.
func Root(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project root %q: %w", dir, err)
	}
	return abs, nil
}

// ResolveWorker locates the worker module relative to root. A missing module
// is not an error; the caller decides what absence means. A path without an
// extension is looked up with the usual source extensions.
func ResolveWorker(root, configured string) (Worker, error) {
	if configured == "" {
		configured = DefaultWorker
	}
	p := filepath.FromSlash(configured)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	candidates := []string{p}
	if filepath.Ext(p) == "" {
		for _, ext := range sourceExtensions {
			candidates = append(candidates, p+ext)
		}
	}

	for _, c := range candidates {
		info, err := os.Stat(c)
		switch {
		case err == nil && info.IsDir():
			if c == p && len(candidates) > 1 {
				continue
			}
			return Worker{Path: c}, fmt.Errorf("%w: %s", ErrWorkerIsDirectory, c)
		case err == nil:
			return Worker{Path: c, Exists: true}, nil
		case !errors.Is(err, os.ErrNotExist):
			return Worker{Path: c}, fmt.Errorf("stat worker: %w", err)
		}
	}
	return Worker{Path: p}, nil
}
