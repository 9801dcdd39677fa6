// SPDX-License-Identifier: MPL-2.0

package patcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/workerstitch/workerstitch/internal/entry"
	"github.com/workerstitch/workerstitch/internal/exports"
	"github.com/workerstitch/workerstitch/internal/jssyntax"
)

// Namespace is the identifier bound to the artifact's module namespace in a
// patched bundle.
const Namespace = "__worker_exports"

// ErrNoDefaultExport is wrapped by GuardError.
var ErrNoDefaultExport = errors.New("bundle has no single default export statement")

var defaultExportPattern = regexp.MustCompile(`\bexport\s*\{\s*([A-Za-z_$][A-Za-z0-9_$]*)\s+as\s+default\s*\}\s*;?`)

// GuardError reports a bundle that does not carry exactly one
// "export { X as default }" statement.
type GuardError struct {
	Matches int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%v (found %d)", ErrNoDefaultExport, e.Matches)
}

// Unwrap returns ErrNoDefaultExport so callers can use errors.Is.
func (e *GuardError) Unwrap() error { return ErrNoDefaultExport }

// DefaultIdent returns the identifier the bundle exports as default.
func DefaultIdent(ctx context.Context, src string) (string, error) {
	loc, err := defaultExport(ctx, src)
	if err != nil {
		return "", err
	}
	return src[loc[2]:loc[3]], nil
}

// defaultExport locates the single top-level "export { X as default }"
// statement. Look-alikes in strings, comments or nested code do not count.
func defaultExport(ctx context.Context, src string) ([]int, error) {
	candidates := defaultExportPattern.FindAllStringSubmatchIndex(src, -1)
	if len(candidates) == 0 {
		return nil, &GuardError{}
	}
	stmts, err := jssyntax.TopLevel(ctx, []byte(src), "export_statement")
	if err != nil {
		return nil, err
	}

	var found [][]int
	for _, loc := range candidates {
		for _, st := range stmts {
			if st.Start == loc[0] {
				found = append(found, loc)
				break
			}
		}
	}
	if len(found) != 1 {
		return nil, &GuardError{Matches: len(found)}
	}
	return found[0], nil
}

// ImportLine is the statement spliced at the top of a patched bundle.
func ImportLine(specifier string) string {
	return fmt.Sprintf("import * as %s from %s;\n", Namespace, entry.JSString(specifier))
}

// Replacement renders the statements that take the place of the adapter's
// default export statement.
func Replacement(rec exports.Record, specifier, ident string) string {
	comp := entry.Composition{
		Namespace: Namespace,
		Specifier: specifier,
		Record:    rec,
		Base:      ident,
		Fallback:  entry.HandlerFallback(ident),
	}
	return strings.TrimSuffix(comp.ReExports()+comp.DefaultExport(), "\n")
}

// PatchText returns src with the artifact import spliced in and the default
// export statement replaced. Every other byte of src is kept.
func PatchText(ctx context.Context, src string, rec exports.Record, specifier string) (string, error) {
	loc, err := defaultExport(ctx, src)
	if err != nil {
		return "", err
	}
	start, end := loc[0], loc[1]
	ident := src[loc[2]:loc[3]]

	var sb strings.Builder
	sb.Grow(len(src) + 512)
	sb.WriteString(ImportLine(specifier))
	sb.WriteString(src[:start])
	sb.WriteString(Replacement(rec, specifier, ident))
	sb.WriteString(src[end:])
	return sb.String(), nil
}
