// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/workerstitch/workerstitch/internal/testutil"
)

func TestResolveWorker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		files      []string
		dirs       []string
		configured string
		wantPath   string
		wantExists bool
		wantErr    error
	}{
		{
			name:       "default present",
			files:      []string{"src/worker.ts"},
			wantPath:   "src/worker.ts",
			wantExists: true,
		},
		{
			name:     "default missing",
			wantPath: "src/worker.ts",
		},
		{
			name:       "configured javascript",
			files:      []string{"worker/index.js"},
			configured: "worker/index.js",
			wantPath:   "worker/index.js",
			wantExists: true,
		},
		{
			name:       "extension added",
			files:      []string{"src/hooks.mjs"},
			configured: "src/hooks",
			wantPath:   "src/hooks.mjs",
			wantExists: true,
		},
		{
			name:       "directory next to source file",
			files:      []string{"src/worker.ts"},
			dirs:       []string{"src/worker"},
			configured: "src/worker",
			wantPath:   "src/worker.ts",
			wantExists: true,
		},
		{
			name:       "directory",
			dirs:       []string{"src/worker.ts"},
			configured: "src/worker.ts",
			wantPath:   "src/worker.ts",
			wantErr:    ErrWorkerIsDirectory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for _, f := range tt.files {
				testutil.MustWriteFile(t, filepath.Join(root, filepath.FromSlash(f)), "export {};\n")
			}
			for _, d := range tt.dirs {
				testutil.MustMkdirAll(t, filepath.Join(root, filepath.FromSlash(d)), 0o755)
			}

			w, err := ResolveWorker(root, tt.configured)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveWorker() error = %v, want %v", err, tt.wantErr)
			}
			if want := filepath.Join(root, filepath.FromSlash(tt.wantPath)); w.Path != want {
				t.Errorf("Path = %q, want %q", w.Path, want)
			}
			if w.Exists != tt.wantExists {
				t.Errorf("Exists = %v, want %v", w.Exists, tt.wantExists)
			}
		})
	}
}

func TestResolveWorkerAbsolute(t *testing.T) {
	t.Parallel()

	other := filepath.Join(t.TempDir(), "w.ts")
	testutil.MustWriteFile(t, other, "export {};\n")

	w, err := ResolveWorker(t.TempDir(), other)
	if err != nil || !w.Exists || w.Path != other {
		t.Errorf("ResolveWorker() = %+v, %v", w, err)
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, err := Root(dir)
	if err != nil || got != dir {
		t.Errorf("Root(%q) = %q, %v", dir, got, err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got, err := Root(""); err != nil || got != wd {
		t.Errorf("Root(\"\") = %q, %v; want %q", got, err, wd)
	}
}

func TestRootRelative(t *testing.T) {
	// Not parallel: changes the working directory.

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testutil.MustMkdirAll(t, filepath.Join(dir, "site"), 0o755)
	defer testutil.MustChdir(t, dir)()

	if got, err := Root("site"); err != nil || got != filepath.Join(dir, "site") {
		t.Errorf("Root(\"site\") = %q, %v", got, err)
	}
	if got, err := Root(""); err != nil || got != dir {
		t.Errorf("Root(\"\") = %q, %v; want %q", got, err, dir)
	}
}
