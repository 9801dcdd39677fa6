// SPDX-License-Identifier: MPL-2.0

package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/workerstitch/workerstitch/internal/exports"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Composition describes one synthesized default export and its re-exports.
type Composition struct {
	// Namespace is the local identifier bound to the user module namespace.
	Namespace string
	// Specifier is the module specifier class re-exports are taken from.
	Specifier string
	// Record is the classification of the user module.
	Record exports.Record
	// Base, when set, is an identifier whose properties are spread into the
	// default export before the stitched handlers.
	Base string
	// Fallback is the expression next() delegates to. request, env and ctx
	// are in scope.
	Fallback string
}

// ReExports renders the class re-export statement, or "" when there are no
// classes.
func (c Composition) ReExports() string {
	if len(c.Record.Classes) == 0 {
		return ""
	}
	names := make([]string, len(c.Record.Classes))
	for i, name := range c.Record.Classes {
		names[i] = ModuleExportName(name)
	}
	return fmt.Sprintf("export { %s } from %s;\n", strings.Join(names, ", "), JSString(c.Specifier))
}

// DefaultExport renders the "export default { ... };" statement.
func (c Composition) DefaultExport() string {
	var sb strings.Builder
	sb.WriteString("export default {\n")

	if c.Base != "" {
		fmt.Fprintf(&sb, "\t...%s,\n", c.Base)
	}

	switch {
	case c.Record.HasHandler(exports.HandlerFetch):
		sb.WriteString("\tfetch(request, env, ctx) {\n")
		sb.WriteString("\t\tlet fallback;\n")
		fmt.Fprintf(&sb, "\t\tconst next = () => (fallback ??= Promise.resolve(%s));\n", c.Fallback)
		fmt.Fprintf(&sb, "\t\treturn Promise.resolve(%s.fetch(request, env, ctx, next)).then((response) => response ?? next());\n", c.Namespace)
		sb.WriteString("\t},\n")
	case c.Base == "":
		// Without a base object there is no other fetch to fall through to.
		sb.WriteString("\tfetch(request, env, ctx) {\n")
		fmt.Fprintf(&sb, "\t\treturn %s;\n", c.Fallback)
		sb.WriteString("\t},\n")
	}

	for _, h := range c.Record.Handlers {
		if h == exports.HandlerFetch {
			continue
		}
		fmt.Fprintf(&sb, "\t%s: %s.%s,\n", h, c.Namespace, h)
	}

	sb.WriteString("};\n")
	return sb.String()
}

// ModuleExportName renders name for an export specifier, quoting names that
// are not plain identifiers.
func ModuleExportName(name string) string {
	if identifierPattern.MatchString(name) {
		return name
	}
	return JSString(name)
}

// JSString renders s as a JavaScript string literal.
func JSString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	return strings.TrimSuffix(buf.String(), "\n")
}

// AssetsFallback is the next() target of the dev entry: the static-asset
// binding named binding.
func AssetsFallback(binding string) string {
	return fmt.Sprintf("%s.fetch(request)", propertyAccess("env", binding))
}

// HandlerFallback is the next() target of a patched bundle: the fetch handler
// of the adapter's original default export.
func HandlerFallback(base string) string {
	return fmt.Sprintf("%s.fetch(request, env, ctx)", base)
}

func propertyAccess(object, prop string) string {
	if identifierPattern.MatchString(prop) {
		return object + "." + prop
	}
	return object + "[" + JSString(prop) + "]"
}
