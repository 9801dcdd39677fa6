// SPDX-License-Identifier: MPL-2.0

package entry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/jssyntax"
	"github.com/workerstitch/workerstitch/internal/testutil"
)

func TestImportPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fromDir string
		target  string
		want    string
	}{
		{"sibling tree", "/proj/.workerstitch", "/proj/src/worker.ts", "../src/worker"},
		{"same directory", "/proj/gen", "/proj/gen/worker.js", "./worker"},
		{"nested below", "/proj", "/proj/src/worker.mts", "./src/worker"},
		{"already relative", "/proj/gen", "src/worker.ts", "./src/worker"},
		{"already dot relative", "/proj/gen", "./worker.tsx", "./worker"},
		{"parent relative kept", "/proj/gen", "../lib/w.jsx", "../lib/w"},
		{"unknown extension kept", "/proj/gen", "/proj/gen/worker.wasm", "./worker.wasm"},
		{"no extension", "/proj/gen", "/proj/src/worker", "../src/worker"},
		{"upper case extension", "/proj/gen", "/proj/gen/Worker.TS", "./Worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ImportPath(filepath.FromSlash(tt.fromDir), filepath.FromSlash(tt.target))
			if got != tt.want {
				t.Errorf("ImportPath(%q, %q) = %q, want %q", tt.fromDir, tt.target, got, tt.want)
			}
		})
	}
}

func TestRenderFetchAndClass(t *testing.T) {
	t.Parallel()

	s := Synthesizer{Dir: "/proj/.workerstitch", AssetsBinding: "ASSETS"}
	rec := exports.Record{Handlers: []string{"fetch"}, Classes: []string{"Foo"}}

	got := s.Render(rec, "/proj/src/worker.ts")
	want := Header + `
import * as worker from "../src/worker";
export { Foo } from "../src/worker";

export default {
	fetch(request, env, ctx) {
		let fallback;
		const next = () => (fallback ??= Promise.resolve(env.ASSETS.fetch(request)));
		return Promise.resolve(worker.fetch(request, env, ctx, next)).then((response) => response ?? next());
	},
};
`
	if got != want {
		t.Errorf("Render() mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestRenderWithoutFetch(t *testing.T) {
	t.Parallel()

	s := Synthesizer{Dir: "/proj/gen", AssetsBinding: "STATIC-FILES"}
	rec := exports.Record{Handlers: []string{"scheduled", "queue"}, Classes: []string{}}

	got := s.Render(rec, "/proj/gen/worker.js")

	for _, want := range []string{
		"\tfetch(request, env, ctx) {\n\t\treturn env[\"STATIC-FILES\"].fetch(request);\n\t},\n",
		"\tscheduled: worker.scheduled,\n",
		"\tqueue: worker.queue,\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "export {") {
		t.Errorf("no re-export expected without classes:\n%s", got)
	}
	if strings.Index(got, "scheduled:") > strings.Index(got, "queue:") {
		t.Error("handlers should keep record order")
	}
}

func TestRenderIsValidJavaScript(t *testing.T) {
	t.Parallel()

	records := []exports.Record{
		{},
		{Handlers: []string{"fetch"}},
		{Handlers: []string{"fetch", "scheduled", "queue", "email", "tail", "trace", "tailStream"}, Classes: []string{"A", "B"}},
		{Classes: []string{"OnlyClass"}},
	}
	s := Synthesizer{Dir: "/proj/gen", AssetsBinding: "ASSETS"}
	for _, rec := range records {
		src := s.Render(rec, "/proj/src/worker.ts")
		if err := jssyntax.Validate(context.Background(), "entry.js", []byte(src)); err != nil {
			t.Errorf("Render(%v) produced invalid JavaScript: %v\n%s", rec, err, src)
		}
	}
}

func TestPathIsContentIndependent(t *testing.T) {
	t.Parallel()

	dir := filepath.FromSlash("/proj/.workerstitch")
	if got, want := Path(dir), filepath.Join(dir, FileName); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestWriteSkipsUnchangedContent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := Synthesizer{Dir: filepath.Join(root, ".workerstitch"), AssetsBinding: "ASSETS"}
	rec := exports.Record{Handlers: []string{"fetch"}, Classes: []string{"Room"}}
	worker := filepath.Join(root, "src", "worker.ts")

	path, err := s.Write(context.Background(), rec, worker)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if path != Path(s.Dir) {
		t.Errorf("Write() path = %q, want %q", path, Path(s.Dir))
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := s.Write(context.Background(), rec, worker); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.ModTime().Equal(old) {
		t.Error("unchanged entry should not be rewritten")
	}

	rec2 := exports.Record{Handlers: []string{"fetch"}, Classes: []string{"Room", "Lobby"}}
	if _, err := s.Write(context.Background(), rec2, worker); err != nil {
		t.Fatalf("third Write() error = %v", err)
	}
	if got := testutil.MustReadFile(t, path); !strings.Contains(got, "export { Room, Lobby }") {
		t.Errorf("changed record should be written, got:\n%s", got)
	}
}

func TestComposeQuotesNonIdentifierExports(t *testing.T) {
	t.Parallel()

	c := Composition{
		Specifier: "./w.js",
		Record:    exports.Record{Classes: []string{"Room", "not-an-ident"}},
	}
	want := `export { Room, "not-an-ident" } from "./w.js";` + "\n"
	if got := c.ReExports(); got != want {
		t.Errorf("ReExports() = %q, want %q", got, want)
	}
}

func TestComposeWithBase(t *testing.T) {
	t.Parallel()

	c := Composition{
		Namespace: "__worker_exports",
		Record:    exports.Record{Handlers: []string{"scheduled"}},
		Base:      "worker_default",
		Fallback:  HandlerFallback("worker_default"),
	}
	got := c.DefaultExport()
	want := "export default {\n\t...worker_default,\n\tscheduled: __worker_exports.scheduled,\n};\n"
	if got != want {
		t.Errorf("DefaultExport() = %q, want %q", got, want)
	}
}
