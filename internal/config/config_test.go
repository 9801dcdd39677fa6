// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := NewProvider().LoadWithSource(context.Background(), LoadOptions{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("source = %q, want none", path)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadProjectFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, FilePath(root), `
worker: "worker/index.ts"
assets_binding: "STATIC"
bundler: externals: ["cloudflare:*", "node:*", "virtual:*"]
dev: {
	watch: true
	debounce: "1s"
}
log: level: "debug"
`)

	cfg, path, err := NewProvider().LoadWithSource(context.Background(), LoadOptions{Root: root})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != FilePath(root) {
		t.Errorf("source = %q", path)
	}

	want := DefaultConfig()
	want.Worker = "worker/index.ts"
	want.AssetsBinding = "STATIC"
	want.Bundler.Externals = []string{"cloudflare:*", "node:*", "virtual:*"}
	want.Dev.Watch = true
	want.Dev.Debounce = time.Second
	want.Log.Level = LogLevelDebug
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, path, `artifact_name: "stitched.js"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path, Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ArtifactName != "stitched.js" {
		t.Errorf("ArtifactName = %q", cfg.ArtifactName)
	}

	_, err = NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path + ".missing"})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("missing explicit file error = %v, want ActionableError", err)
	}
	if !ae.HasSuggestions() {
		t.Error("missing file error should carry suggestions")
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", `workr: "src/worker.ts"`, "workr"},
		{"wrong type", `dev: watch: "yes"`, "dev.watch"},
		{"bad level", `log: level: "trace"`, "log.level"},
		{"nested artifact", `artifact_name: "dist/x.js"`, "artifact_name"},
		{"bad binding", `assets_binding: "my-assets"`, "assets_binding"},
		{"syntax", `worker: `, "workerstitch.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			testutil.MustWriteFile(t, FilePath(root), tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{Root: root})
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	defer testutil.MustSetenv(t, "WORKERSTITCH_DEV_WATCH", "true")()
	defer testutil.MustSetenv(t, "WORKERSTITCH_ASSETS_BINDING", "FILES")()
	defer testutil.MustSetenv(t, "WORKERSTITCH_LOG_LEVEL", "warn")()

	root := t.TempDir()
	testutil.MustWriteFile(t, FilePath(root), `assets_binding: "STATIC"`)

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{Root: root})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Dev.Watch || cfg.AssetsBinding != "FILES" || cfg.Log.Level != LogLevelWarn {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadValidatesEnvironmentValues(t *testing.T) {
	defer testutil.MustSetenv(t, "WORKERSTITCH_LOG_LEVEL", "loud")()

	_, err := NewProvider().Load(context.Background(), LoadOptions{Root: t.TempDir()})
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Load() error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{Root: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path, created, err := CreateDefaultConfig(root, false)
	if err != nil || !created {
		t.Fatalf("CreateDefaultConfig() = %q, %v, %v", path, created, err)
	}
	if _, created, _ := CreateDefaultConfig(root, false); created {
		t.Error("CreateDefaultConfig() should not overwrite")
	}
	if _, created, err := CreateDefaultConfig(root, true); err != nil || !created {
		t.Errorf("CreateDefaultConfig(force) = %v, %v, want overwrite", created, err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{Root: root})
	if err != nil {
		t.Fatalf("Load() generated config error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("generated config does not round-trip (-want +got):\n%s", diff)
	}
}
