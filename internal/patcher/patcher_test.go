// SPDX-License-Identifier: MPL-2.0

package patcher

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/workerstitch/workerstitch/internal/bundler"
	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/issue"
	"github.com/workerstitch/workerstitch/internal/lifecycle"
	"github.com/workerstitch/workerstitch/internal/testutil"
)

const fooWorker = `export class Foo {
	constructor(state) { this.state = state; }
}
export const fetch = (request: string, env: unknown, ctx: unknown, next: () => Promise<unknown>) =>
	request.startsWith("/api") ? Promise.resolve("worker:" + request) : Promise.resolve(undefined);
`

const deployConfig = `{
	// keep me
	"main": ".svelte-kit/cloudflare/_worker.js",
	"durable_objects": {
		"bindings": [
			{ "name": "FOO", "class_name": "Foo", "script_name": "elsewhere" }
		]
	}
}
`

type fixture struct {
	root   string
	bundle string
	config string
}

func newProject(t *testing.T, worker string) fixture {
	t.Helper()
	root := t.TempDir()
	p := fixture{
		root:   root,
		bundle: filepath.Join(root, ".svelte-kit", "cloudflare", "_worker.js"),
		config: filepath.Join(root, "wrangler.jsonc"),
	}
	if worker != "" {
		testutil.MustWriteFile(t, filepath.Join(root, "src", "worker.ts"), worker)
	}
	testutil.MustWriteFile(t, p.bundle, adapterBundle)
	testutil.MustWriteFile(t, p.config, deployConfig)
	return p
}

func newPatcher() *Patcher {
	b := bundler.New()
	return New(exports.NewClassifier(b, bundler.DefaultOptions(), nil), b, Options{Bundler: bundler.DefaultOptions()}, nil)
}

func TestPatchStitchesWorker(t *testing.T) {
	t.Parallel()

	p := newProject(t, fooWorker)
	res, err := newPatcher().Patch(context.Background(), p.root)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if res.Status != StatusPatched {
		t.Fatalf("Status = %s, want %s", res.Status, StatusPatched)
	}
	want := exports.Record{Handlers: []string{"fetch"}, Classes: []string{"Foo"}}
	if diff := cmp.Diff(want, res.Record); diff != "" {
		t.Errorf("Record (-want +got):\n%s", diff)
	}
	if res.Artifact != filepath.Join(filepath.Dir(p.bundle), DefaultArtifactName) {
		t.Errorf("Artifact = %q", res.Artifact)
	}
	if art := testutil.MustReadFile(t, res.Artifact); !strings.Contains(art, "Foo") {
		t.Errorf("artifact does not define Foo:\n%s", art)
	}

	src := testutil.MustReadFile(t, p.bundle)
	if !strings.HasPrefix(src, `import * as __worker_exports from "./_worker_exports.js";`+"\n") {
		t.Errorf("bundle does not start with the artifact import:\n%s", src)
	}
	if !strings.Contains(src, `export { Foo } from "./_worker_exports.js";`) {
		t.Errorf("bundle does not re-export Foo:\n%s", src)
	}

	if res.Scrubbed != 1 {
		t.Errorf("Scrubbed = %d, want 1", res.Scrubbed)
	}
	cfg := testutil.MustReadFile(t, p.config)
	if strings.Contains(cfg, "script_name") {
		t.Errorf("script_name not scrubbed:\n%s", cfg)
	}
	if !strings.Contains(cfg, "// keep me") || !strings.Contains(cfg, `{ "name": "FOO", "class_name": "Foo" }`) {
		t.Errorf("deploy config formatting not preserved:\n%s", cfg)
	}
}

func TestPatchTwiceEqualsOnce(t *testing.T) {
	t.Parallel()

	p := newProject(t, fooWorker)
	pt := newPatcher()
	if _, err := pt.Patch(context.Background(), p.root); err != nil {
		t.Fatalf("first Patch() error = %v", err)
	}
	once := testutil.MustReadFile(t, p.bundle)
	cfgOnce := testutil.MustReadFile(t, p.config)

	res, err := pt.Patch(context.Background(), p.root)
	if err != nil {
		t.Fatalf("second Patch() error = %v", err)
	}
	if res.Status != StatusAlreadyPatched {
		t.Errorf("second Status = %s, want %s", res.Status, StatusAlreadyPatched)
	}
	if twice := testutil.MustReadFile(t, p.bundle); twice != once {
		t.Error("second patch changed the bundle")
	}
	if cfgTwice := testutil.MustReadFile(t, p.config); cfgTwice != cfgOnce {
		t.Error("second patch changed the deploy config")
	}
}

func TestPatchHelperOnlyWorker(t *testing.T) {
	t.Parallel()

	p := newProject(t, "export const helper = () => 1;\n")
	res, err := newPatcher().Patch(context.Background(), p.root)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if res.Status != StatusPatched {
		t.Errorf("Status = %s, want %s", res.Status, StatusPatched)
	}
	if diff := cmp.Diff([]string{"helper"}, res.Record.Classes); diff != "" {
		t.Errorf("Classes (-want +got):\n%s", diff)
	}
}

func TestPatchSkips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		worker string
		setup  func(t *testing.T, p fixture)
		want   Status
	}{
		{name: "no worker", want: StatusNoWorker},
		{name: "default only", worker: "export default { fetch() { return null; } };\n", want: StatusEmpty},
		{
			name:   "no bundle",
			worker: fooWorker,
			setup: func(t *testing.T, p fixture) {
				testutil.MustWriteFile(t, p.config, `{ "main": "dist/missing.js" }`)
			},
			want: StatusNoBundle,
		},
		{
			name:   "foreign bundle",
			worker: fooWorker,
			setup: func(t *testing.T, p fixture) {
				testutil.MustWriteFile(t, p.bundle, "export default {};\n")
			},
			want: StatusAlreadyPatched,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProject(t, tt.worker)
			if tt.setup != nil {
				tt.setup(t, p)
			}
			before := testutil.MustReadFile(t, p.bundle)

			res, err := newPatcher().Patch(context.Background(), p.root)
			if err != nil {
				t.Fatalf("Patch() error = %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %s, want %s", res.Status, tt.want)
			}
			if after := testutil.MustReadFile(t, p.bundle); after != before {
				t.Error("skipped patch changed the bundle")
			}
			testutil.MustNotExist(t, filepath.Join(filepath.Dir(p.bundle), DefaultArtifactName))
			if cfg := testutil.MustReadFile(t, p.config); tt.want != StatusNoBundle && !strings.Contains(cfg, "script_name") {
				t.Error("skipped patch should not scrub the deploy config")
			}
		})
	}
}

func TestPatchFallsBackToDefaultBundle(t *testing.T) {
	t.Parallel()

	p := newProject(t, fooWorker)
	testutil.MustWriteFile(t, p.config, "{ not json")

	res, err := newPatcher().Patch(context.Background(), p.root)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if res.Status != StatusPatched || res.Bundle != p.bundle {
		t.Errorf("Patch() = %s at %q, want patched at %q", res.Status, res.Bundle, p.bundle)
	}
}

func TestPatchSurfacesBundleFailure(t *testing.T) {
	t.Parallel()

	p := newProject(t, "import { missing } from \"./nowhere\";\nexport class Foo extends missing {}\n")
	_, err := newPatcher().Patch(context.Background(), p.root)
	if !errors.Is(err, bundler.ErrBundleFailed) {
		t.Fatalf("Patch() error = %v, want ErrBundleFailed", err)
	}
	// Classification bundles the worker first, so it reports the failure.
	if is := issue.Lookup(err); is == nil || is.Id() != issue.ClassificationFailedId {
		t.Errorf("issue.Lookup() = %v, want ClassificationFailedId", is)
	}
	if got := testutil.MustReadFile(t, p.bundle); got != adapterBundle {
		t.Error("failed patch changed the bundle")
	}
}

// warningBundler runs esbuild and adds one warning to every result.
type warningBundler struct{ inner *bundler.Esbuild }

func (w warningBundler) Bundle(ctx context.Context, req bundler.Request) (*bundler.Result, error) {
	res, err := w.inner.Bundle(ctx, req)
	if err == nil {
		res.Warnings = append(res.Warnings, "sample esbuild warning")
	}
	return res, err
}

func TestPatchReportsWarningsAndExternals(t *testing.T) {
	t.Parallel()

	p := newProject(t, `import { DurableObject } from "cloudflare:workers";
export class Room extends DurableObject {}
`)
	var logs bytes.Buffer
	b := warningBundler{inner: bundler.New()}
	logger := log.New(&logs)
	pt := New(exports.NewClassifier(b, bundler.DefaultOptions(), logger), b, Options{Bundler: bundler.DefaultOptions()}, logger)

	res, err := pt.Patch(context.Background(), p.root)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if res.Status != StatusPatched {
		t.Fatalf("Status = %s, want %s", res.Status, StatusPatched)
	}
	if diff := cmp.Diff([]string{"cloudflare:workers"}, res.Externals); diff != "" {
		t.Errorf("Externals (-want +got):\n%s", diff)
	}

	out := logs.String()
	for _, want := range []string{"bundler warning during classification", "bundler warning in worker artifact", "sample esbuild warning"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output does not contain %q:\n%s", want, out)
		}
	}
}

func TestPatcherRunsAsPostPlugin(t *testing.T) {
	t.Parallel()

	p := newProject(t, fooWorker)
	pt := newPatcher()
	if err := lifecycle.New(nil, pt).RunCloseBundle(context.Background(), &lifecycle.BuildOutput{Root: p.root}); err != nil {
		t.Fatalf("RunCloseBundle() error = %v", err)
	}
	if pt.Last() == nil || pt.Last().Status != StatusPatched {
		t.Errorf("Last() = %+v", pt.Last())
	}
	if pt.Enforce() != lifecycle.EnforcePost {
		t.Error("patcher should run in the post bucket")
	}
}
