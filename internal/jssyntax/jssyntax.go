// SPDX-License-Identifier: MPL-2.0

// Package jssyntax checks generated JavaScript module text for syntax errors
// with the tree-sitter JavaScript grammar before it is written to disk.
package jssyntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("javascript syntax error")

// SyntaxError locates the first error node in a parsed module.
// Line and Column are 1-based.
type SyntaxError struct {
	Name    string
	Line    int
	Column  int
	Snippet string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: invalid syntax near %q", e.Name, e.Line, e.Column, e.Snippet)
}

// Unwrap returns ErrSyntax so callers can use errors.Is.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Span is a half-open byte range of the parsed source.
type Span struct {
	Start, End int
}

func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())
	return parser.ParseCtx(ctx, nil, src)
}

// TopLevel returns the ranges of the module's top-level statements of the
// given node type, such as "export_statement", in source order. Text inside
// strings, comments and nested scopes is never reported.
func TopLevel(ctx context.Context, src []byte, nodeType string) ([]Span, error) {
	tree, err := parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var spans []Span
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if c := root.NamedChild(i); c.Type() == nodeType {
			spans = append(spans, Span{Start: int(c.StartByte()), End: int(c.EndByte())})
		}
	}
	return spans, nil
}

// Validate parses src as a JavaScript module. name is used in error messages.
func Validate(ctx context.Context, name string, src []byte) error {
	tree, err := parse(ctx, src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	bad := firstError(root)
	if bad == nil {
		bad = root
	}
	pt := bad.StartPoint()
	snippet := bad.Content(src)
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	return &SyntaxError{
		Name:    name,
		Line:    int(pt.Row) + 1,
		Column:  int(pt.Column) + 1,
		Snippet: snippet,
	}
}

// firstError returns the earliest ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
