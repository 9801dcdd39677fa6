// SPDX-License-Identifier: MPL-2.0

package deployconfig

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2/unstable"
	"github.com/tailscale/hujson"
)

const scriptNameKey = "script_name"

// span is a half-open byte range of the original text.
type span struct{ start, end int }

// Scrub removes script_name from every Durable Object binding in the deploy
// config at path. All other bytes, comments included, are kept. The file is
// only rewritten when something was removed. It returns the number of
// removed entries.
func Scrub(path string) (int, error) {
	format, err := FormatOf(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat deploy config: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read deploy config: %w", err)
	}

	out, n, err := ScrubBytes(data, format)
	if err != nil {
		return 0, &ParseError{Path: path, Err: err}
	}
	if n == 0 {
		return 0, nil
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("write deploy config: %w", err)
	}
	return n, nil
}

// ScrubBytes is Scrub on in-memory text. The result is parsed again before
// it is returned so a removal can never leave a broken file behind.
func ScrubBytes(data []byte, format Format) ([]byte, int, error) {
	var (
		out []byte
		n   int
		err error
	)
	switch format {
	case FormatJSONC:
		out, n, err = scrubJSONC(data)
	case FormatTOML:
		out, n, err = scrubTOML(data)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil || n == 0 {
		return data, 0, err
	}
	if _, err := decodeRaw(out, format); err != nil {
		return nil, 0, fmt.Errorf("scrubbed config does not parse: %w", err)
	}
	return out, n, nil
}

func scrubJSONC(data []byte) ([]byte, int, error) {
	root, err := hujson.Parse(data)
	if err != nil {
		return nil, 0, err
	}
	top, ok := root.Value.(*hujson.Object)
	if !ok {
		return data, 0, nil
	}

	var cuts []span
	n := appendBindingCuts(&cuts, data, top)
	// Per-environment overrides carry their own bindings.
	if envs := member(top, "env"); envs != nil {
		if envObj, ok := envs.Value.(*hujson.Object); ok {
			for i := range envObj.Members {
				if o, ok := envObj.Members[i].Value.Value.(*hujson.Object); ok {
					n += appendBindingCuts(&cuts, data, o)
				}
			}
		}
	}
	return cutSpans(data, cuts), n, nil
}

// appendBindingCuts adds the removal ranges of script_name members found in
// obj.durable_objects.bindings and returns how many members it found.
func appendBindingCuts(cuts *[]span, data []byte, obj *hujson.Object) int {
	arr := bindingsArray(obj)
	if arr == nil {
		return 0
	}
	n := 0
	for i := range arr.Elements {
		b, ok := arr.Elements[i].Value.(*hujson.Object)
		if !ok {
			continue
		}
		for j := range b.Members {
			if memberName(&b.Members[j]) == scriptNameKey {
				*cuts = append(*cuts, memberCut(data, b, j)...)
				n++
			}
		}
	}
	return n
}

func bindingsArray(obj *hujson.Object) *hujson.Array {
	do := member(obj, "durable_objects")
	if do == nil {
		return nil
	}
	doObj, ok := do.Value.(*hujson.Object)
	if !ok {
		return nil
	}
	bindings := member(doObj, "bindings")
	if bindings == nil {
		return nil
	}
	arr, _ := bindings.Value.(*hujson.Array)
	return arr
}

func member(obj *hujson.Object, name string) *hujson.Value {
	for i := range obj.Members {
		if memberName(&obj.Members[i]) == name {
			return &obj.Members[i].Value
		}
	}
	return nil
}

func memberName(m *hujson.ObjectMember) string {
	lit, ok := m.Name.Value.(hujson.Literal)
	if !ok {
		return ""
	}
	return lit.String()
}

// memberCut returns the ranges that delete obj.Members[i] together with the
// comma that separates it from a neighbor.
func memberCut(data []byte, obj *hujson.Object, i int) []span {
	m := obj.Members[i]
	body := span{m.Name.StartOffset, m.Value.EndOffset}

	// The byte after a value's trailing extra is its comma, if any.
	after := m.Value.EndOffset + len(m.Value.AfterExtra)
	if after < len(data) && data[after] == ',' {
		body.end = after + 1
		return []span{wholeLine(data, body)}
	}

	if i > 0 {
		prev := obj.Members[i-1].Value
		comma := prev.EndOffset + len(prev.AfterExtra)
		if comma < len(data) && data[comma] == ',' {
			return []span{{comma, comma + 1}, wholeLine(data, body)}
		}
	}
	return []span{wholeLine(data, body)}
}

// wholeLine widens s to its full line when nothing but blanks share the line
// with it; otherwise it only swallows blanks that follow s.
func wholeLine(data []byte, s span) span {
	lineStart := s.start
	for lineStart > 0 && isBlank(data[lineStart-1]) {
		lineStart--
	}
	end := s.end
	for end < len(data) && isBlank(data[end]) {
		end++
	}

	startsLine := lineStart == 0 || data[lineStart-1] == '\n'
	endsLine := end == len(data) || data[end] == '\n' || data[end] == '\r'
	if startsLine && endsLine {
		if end < len(data) && data[end] == '\r' {
			end++
		}
		if end < len(data) && data[end] == '\n' {
			end++
		}
		return span{lineStart, end}
	}
	return span{s.start, end}
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

// cutSpans deletes the given ranges from data.
func cutSpans(data []byte, cuts []span) []byte {
	if len(cuts) == 0 {
		return data
	}
	slices.SortFunc(cuts, func(a, b span) int { return a.start - b.start })

	var buf bytes.Buffer
	buf.Grow(len(data))
	pos := 0
	for _, c := range cuts {
		if c.start < pos {
			c.start = pos
		}
		if c.end <= c.start {
			continue
		}
		buf.Write(data[pos:c.start])
		pos = c.end
	}
	buf.Write(data[pos:])
	return buf.Bytes()
}

// scrubTOML removes script_name keys from [[durable_objects.bindings]]
// tables and from inline binding tables, per environment too. Cut ranges come
// from the go-toml parse tree, so comments and strings are never touched.
func scrubTOML(data []byte) ([]byte, int, error) {
	s := tomlScrub{data: data}
	s.p.KeepComments = true
	s.p.Reset(data)

	var table []string
	for s.p.NextExpression() {
		expr := s.p.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			table = keyPath(expr.Key())
		case unstable.KeyValue:
			s.keyval(table, expr, false)
		}
	}
	if err := s.p.Error(); err != nil {
		return nil, 0, err
	}
	return cutSpans(data, s.cuts), s.n, nil
}

type tomlScrub struct {
	data []byte
	p    unstable.Parser
	cuts []span
	n    int
}

// keyval visits one key/value under path. inline is set for members of an
// inline table.
func (s *tomlScrub) keyval(path []string, kv *unstable.Node, inline bool) {
	full := slices.Concat(path, keyPath(kv.Key()))
	v := kv.Value()

	last := len(full) - 1
	if full[last] == scriptNameKey && isBindingsPath(full[:last]) {
		if end, ok := s.valueEnd(v); ok {
			it := kv.Key()
			it.Next()
			body := span{int(it.Node().Raw.Offset), end}
			if inline {
				s.cuts = append(s.cuts, inlineMemberCut(s.data, body))
			} else {
				// A trailing comment describes the removed value.
				if c := kv.Next(); c != nil && c.Kind == unstable.Comment {
					body.end = int(c.Raw.Offset + c.Raw.Length)
				}
				s.cuts = append(s.cuts, wholeLine(s.data, body))
			}
			s.n++
		}
		return
	}

	switch v.Kind {
	case unstable.InlineTable:
		s.members(full, v)
	case unstable.Array:
		if !isBindingsPath(full) {
			return
		}
		it := v.Children()
		for it.Next() {
			if el := it.Node(); el.Kind == unstable.InlineTable {
				s.members(full, el)
			}
		}
	}
}

func (s *tomlScrub) members(path []string, table *unstable.Node) {
	it := table.Children()
	for it.Next() {
		if kv := it.Node(); kv.Kind == unstable.KeyValue {
			s.keyval(path, kv, true)
		}
	}
}

// valueEnd returns the offset just past a scalar value.
func (s *tomlScrub) valueEnd(v *unstable.Node) (int, bool) {
	switch v.Kind {
	case unstable.String:
		return int(v.Raw.Offset + v.Raw.Length), true
	case unstable.Bool, unstable.Integer, unstable.Float,
		unstable.LocalDate, unstable.LocalTime, unstable.LocalDateTime, unstable.DateTime:
		r := s.p.Range(v.Data)
		return int(r.Offset + r.Length), true
	default:
		return 0, false
	}
}

// inlineMemberCut widens an inline-table member to take one separating
// comma with it.
func inlineMemberCut(data []byte, body span) span {
	after := body.end
	for after < len(data) && isBlank(data[after]) {
		after++
	}
	if after < len(data) && data[after] == ',' {
		after++
		for after < len(data) && isBlank(data[after]) {
			after++
		}
		return span{body.start, after}
	}

	before := body.start
	for before > 0 && isBlank(data[before-1]) {
		before--
	}
	if before > 0 && data[before-1] == ',' {
		return span{before - 1, body.end}
	}
	// Only member: keep one blank before the closing brace.
	return span{body.start, after}
}

func keyPath(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

// isBindingsPath matches durable_objects.bindings, top level or under one
// env.<name> table.
func isBindingsPath(path []string) bool {
	switch len(path) {
	case 2:
		return path[0] == "durable_objects" && path[1] == "bindings"
	case 4:
		return path[0] == "env" && path[2] == "durable_objects" && path[3] == "bindings"
	default:
		return false
	}
}
