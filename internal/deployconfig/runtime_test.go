// SPDX-License-Identifier: MPL-2.0

package deployconfig

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPatchRuntimeWithWorker(t *testing.T) {
	t.Parallel()

	migrations := []map[string]any{{"tag": "v1"}}
	cfg := &Config{
		CompatibilityFlags: []string{"nodejs_compat", "a", "nodejs_compat", "b", "a"},
		DurableObjects: &DurableObjects{Bindings: []DurableObjectBinding{
			{Name: "ROOM", ClassName: "Room", ScriptName: "remote"},
			{Name: "LOBBY", ClassName: "Lobby"},
		}},
		Migrations: migrations,
	}

	PatchRuntime(cfg, "ASSETS", true)

	if diff := cmp.Diff([]string{"nodejs_compat", "a", "b"}, cfg.CompatibilityFlags); diff != "" {
		t.Errorf("flags (-want +got):\n%s", diff)
	}
	for _, b := range cfg.DurableObjects.Bindings {
		if b.ScriptName != "" {
			t.Errorf("binding %s kept script_name %q", b.Name, b.ScriptName)
		}
	}
	if cfg.Assets == nil || cfg.Assets.Binding != "ASSETS" || cfg.Assets.RunWorkerFirst != true {
		t.Errorf("assets = %+v", cfg.Assets)
	}
	if &cfg.Migrations[0] != &migrations[0] {
		t.Error("migrations slice should keep its identity")
	}
}

func TestPatchRuntimeKeepsUserChoices(t *testing.T) {
	t.Parallel()

	routes := []any{"/api/*"}
	cfg := &Config{Assets: &Assets{Binding: "STATIC", RunWorkerFirst: routes}}
	assets := cfg.Assets

	PatchRuntime(cfg, "ASSETS", true)

	if cfg.Assets != assets {
		t.Error("assets block should be adjusted in place")
	}
	if cfg.Assets.Binding != "STATIC" {
		t.Errorf("Binding = %q, want STATIC", cfg.Assets.Binding)
	}
	if diff := cmp.Diff(routes, cfg.Assets.RunWorkerFirst); diff != "" {
		t.Errorf("RunWorkerFirst (-want +got):\n%s", diff)
	}

	off := &Config{Assets: &Assets{RunWorkerFirst: false}}
	PatchRuntime(off, "ASSETS", true)
	if off.Assets.RunWorkerFirst != false {
		t.Error("explicit run_worker_first=false should be kept")
	}
}

func TestPatchRuntimeWithoutWorker(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		CompatibilityFlags: []string{"x", "x"},
		DurableObjects: &DurableObjects{Bindings: []DurableObjectBinding{
			{Name: "ROOM", ClassName: "Room", ScriptName: "remote"},
		}},
	}
	PatchRuntime(cfg, "ASSETS", false)

	if cfg.Assets != nil {
		t.Errorf("assets should not be added without a worker, got %+v", cfg.Assets)
	}
	if diff := cmp.Diff([]string{"x"}, cfg.CompatibilityFlags); diff != "" {
		t.Errorf("flags (-want +got):\n%s", diff)
	}
	if cfg.DurableObjects.Bindings[0].ScriptName != "" {
		t.Error("script_name should always be stripped in memory")
	}

	PatchRuntime(nil, "ASSETS", true)
}
