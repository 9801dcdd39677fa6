// SPDX-License-Identifier: MPL-2.0

package exports

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/workerstitch/workerstitch/internal/bundler"
)

type fakeBundler struct {
	exports  []string
	warnings []string
	err      error
	got      bundler.Request
}

func (f *fakeBundler) Bundle(_ context.Context, req bundler.Request) (*bundler.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &bundler.Result{Exports: f.exports, Warnings: f.warnings}, nil
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		want  Record
	}{
		{
			name:  "empty",
			names: nil,
			want:  Record{Handlers: []string{}, Classes: []string{}},
		},
		{
			name:  "class and fetch",
			names: []string{"Foo", "fetch"},
			want:  Record{Handlers: []string{"fetch"}, Classes: []string{"Foo"}},
		},
		{
			name:  "default is dropped",
			names: []string{"default", "scheduled", "Room"},
			want:  Record{Handlers: []string{"scheduled"}, Classes: []string{"Room"}},
		},
		{
			name:  "every recognized handler",
			names: []string{"tailStream", "trace", "tail", "email", "queue", "scheduled", "fetch"},
			want: Record{
				Handlers: []string{"tailStream", "trace", "tail", "email", "queue", "scheduled", "fetch"},
				Classes:  []string{},
			},
		},
		{
			name:  "plain helper is a class",
			names: []string{"helper"},
			want:  Record{Handlers: []string{}, Classes: []string{"helper"}},
		},
		{
			name:  "membership is case sensitive",
			names: []string{"Fetch", "SCHEDULED"},
			want:  Record{Handlers: []string{}, Classes: []string{"Fetch", "SCHEDULED"}},
		},
		{
			name:  "duplicates keep first position",
			names: []string{"fetch", "A", "fetch", "A", "B"},
			want:  Record{Handlers: []string{"fetch"}, Classes: []string{"A", "B"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(tt.names)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%v) mismatch (-want +got):\n%s", tt.names, diff)
			}
		})
	}
}

func TestClassifyInvariants(t *testing.T) {
	t.Parallel()

	names := []string{"default", "fetch", "Room", "queue", "helper", "Room", "email", "default"}
	rec := Classify(names)

	for _, h := range rec.Handlers {
		if !IsHandler(h) {
			t.Errorf("handler %q is not in the recognized set", h)
		}
		if slices.Contains(rec.Classes, h) {
			t.Errorf("%q appears in both handlers and classes", h)
		}
	}
	if slices.Contains(rec.Handlers, DefaultExport) || slices.Contains(rec.Classes, DefaultExport) {
		t.Error("default must never be classified")
	}
}

func TestClassifyOrderIndependent(t *testing.T) {
	t.Parallel()

	orders := [][]string{
		{"Foo", "fetch", "Bar", "scheduled"},
		{"scheduled", "Bar", "fetch", "Foo"},
		{"fetch", "scheduled", "Foo", "Bar"},
	}
	for _, names := range orders {
		rec := Classify(names)
		gotH := slices.Sorted(slices.Values(rec.Handlers))
		gotC := slices.Sorted(slices.Values(rec.Classes))
		if diff := cmp.Diff([]string{"fetch", "scheduled"}, gotH); diff != "" {
			t.Errorf("handlers for %v (-want +got):\n%s", names, diff)
		}
		if diff := cmp.Diff([]string{"Bar", "Foo"}, gotC); diff != "" {
			t.Errorf("classes for %v (-want +got):\n%s", names, diff)
		}
	}
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	if !(Record{}).Empty() {
		t.Error("zero record should be empty")
	}
	rec := Record{Handlers: []string{"fetch"}}
	if rec.Empty() {
		t.Error("record with a handler is not empty")
	}
	if !rec.HasHandler("fetch") || rec.HasHandler("queue") {
		t.Errorf("HasHandler gave wrong answers for %v", rec)
	}

	handlers := RecognizedHandlers()
	handlers[0] = "mutated"
	if !IsHandler("fetch") {
		t.Error("RecognizedHandlers must return a copy")
	}
}

func TestClassifierPropagatesFailure(t *testing.T) {
	t.Parallel()

	boom := &bundler.BundleError{Entry: "worker.ts", Messages: []string{"boom"}}
	c := NewClassifier(&fakeBundler{err: boom}, bundler.DefaultOptions(), nil)

	rec, err := c.ClassifyFile(context.Background(), "worker.ts")
	if !errors.Is(err, bundler.ErrBundleFailed) {
		t.Fatalf("expected bundle failure, got %v", err)
	}
	if !rec.Empty() {
		t.Errorf("failed classification must not return a record, got %v", rec)
	}
}

func TestClassifierPassesOptions(t *testing.T) {
	t.Parallel()

	fb := &fakeBundler{exports: []string{"default", "Room"}}
	opts := bundler.Options{Externals: []string{"cloudflare:*"}, Conditions: []string{"workerd"}}
	c := NewClassifier(fb, opts, nil)

	rec, err := c.ClassifyFile(context.Background(), "/proj/src/worker.ts")
	if err != nil {
		t.Fatalf("ClassifyFile() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Room"}, rec.Classes); diff != "" {
		t.Errorf("classes (-want +got):\n%s", diff)
	}
	if fb.got.EntryPath != "/proj/src/worker.ts" || fb.got.Outfile != "" {
		t.Errorf("unexpected request %+v", fb.got)
	}
	if diff := cmp.Diff(opts, fb.got.Options); diff != "" {
		t.Errorf("options (-want +got):\n%s", diff)
	}
}

func TestClassifierLogsWarnings(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	fb := &fakeBundler{exports: []string{"Room"}, warnings: []string{"duplicate key \"fetch\" in object literal"}}
	c := NewClassifier(fb, bundler.DefaultOptions(), log.New(&logs))

	if _, err := c.ClassifyFile(context.Background(), "/proj/src/worker.ts"); err != nil {
		t.Fatalf("ClassifyFile() error = %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "bundler warning during classification") || !strings.Contains(out, "/proj/src/worker.ts") {
		t.Errorf("warning not logged:\n%s", out)
	}

	logs.Reset()
	fb.warnings = nil
	if _, err := c.ClassifyFile(context.Background(), "/proj/src/worker.ts"); err != nil {
		t.Fatalf("ClassifyFile() error = %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log output without warnings:\n%s", logs.String())
	}
}

func TestClassifySourceWithEsbuild(t *testing.T) {
	t.Parallel()

	c := NewClassifier(bundler.New(), bundler.DefaultOptions(), nil)
	rec, err := c.ClassifySource(context.Background(), `
export class Foo {}
export const fetch = async () => undefined;
`, t.TempDir(), "worker.ts")
	if err != nil {
		t.Fatalf("ClassifySource() error = %v", err)
	}

	want := Record{Handlers: []string{"fetch"}, Classes: []string{"Foo"}}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyFileWithEsbuildReExports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "objects.ts"), "export class Chat {}\nexport class Presence {}\n")
	mustWrite(t, filepath.Join(dir, "worker.ts"), `import { WorkerEntrypoint } from "cloudflare:workers";
export { Chat, Presence as Online } from "./objects";
export class Admin extends WorkerEntrypoint {}
export async function queue() {}
export default {};
`)

	c := NewClassifier(bundler.New(), bundler.DefaultOptions(), nil)
	rec, err := c.ClassifyFile(context.Background(), filepath.Join(dir, "worker.ts"))
	if err != nil {
		t.Fatalf("ClassifyFile() error = %v", err)
	}

	if diff := cmp.Diff([]string{"queue"}, rec.Handlers); diff != "" {
		t.Errorf("handlers (-want +got):\n%s", diff)
	}
	gotC := slices.Sorted(slices.Values(rec.Classes))
	if diff := cmp.Diff([]string{"Admin", "Chat", "Online"}, gotC); diff != "" {
		t.Errorf("classes (-want +got):\n%s", diff)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
