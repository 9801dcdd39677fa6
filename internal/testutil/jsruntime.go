// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
)

// LoadModule bundles the ES module at path into a classic script and runs it
// in a fresh goja runtime. The module's default export is bound to the global
// __entry and its namespace object to __module.
func LoadModule(t testing.TB, path string) *goja.Runtime {
	t.Helper()

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("resolve %s: %v", path, err)
	}

	harness := fmt.Sprintf(
		"import __default, * as __ns from %q;\nglobalThis.__entry = __default;\nglobalThis.__module = __ns;\n",
		"./"+filepath.Base(abs),
	)
	res := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   harness,
			ResolveDir: filepath.Dir(abs),
			Sourcefile: "harness.js",
			Loader:     api.LoaderJS,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatIIFE,
		Platform: api.PlatformNeutral,
		Target:   api.ES2017,
		LogLevel: api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msgs := api.FormatMessages(res.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		t.Fatalf("bundle %s for evaluation:\n%s", path, strings.Join(msgs, "\n"))
	}
	if len(res.OutputFiles) != 1 {
		t.Fatalf("expected one output file, got %d", len(res.OutputFiles))
	}

	vm := goja.New()
	if _, err := vm.RunString(string(res.OutputFiles[0].Contents)); err != nil {
		t.Fatalf("evaluate %s: %v", path, err)
	}
	return vm
}

// MustRun evaluates script in vm and returns its completion value.
func MustRun(t testing.TB, vm *goja.Runtime, script string) goja.Value {
	t.Helper()
	v, err := vm.RunString(script)
	if err != nil {
		t.Fatalf("run %q: %v", script, err)
	}
	return v
}

// Await evaluates expr and returns its value, unwrapping a promise. goja
// drains its job queue when a top-level run returns, so a promise that only
// depends on other promises is settled by then.
func Await(t testing.TB, vm *goja.Runtime, expr string) goja.Value {
	t.Helper()
	v := MustRun(t, vm, expr)

	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result()
	case goja.PromiseStateRejected:
		t.Fatalf("%s rejected: %v", expr, p.Result())
	default:
		t.Fatalf("%s is still pending", expr)
	}
	return nil
}
