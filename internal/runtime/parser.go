package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/risor-io/risor/object"

	"github.com/jward/tads3ls/internal/symbols"
)

// Parser runs a language's extraction script against one file's text. It
// is safe for concurrent use: every Parse call gets its own collector.
type Parser struct {
	rt      *Runtime
	script  string
	label   string
	version string
}

// NewParser loads the extraction script for language from rt's script source.
func NewParser(rt *Runtime, language string) (*Parser, error) {
	label := ExtractionScriptPath(language)
	src, err := rt.LoadScript(label)
	if err != nil {
		return nil, err
	}
	return &Parser{
		rt:      rt,
		script:  src,
		label:   label,
		version: fmt.Sprintf("%016x", xxhash.Sum64String(label+"\x00"+src)),
	}, nil
}

// Version identifies the script text. Cached results written by a different
// version are not reused.
func (p *Parser) Version() string { return p.version }

// Parse extracts the document symbols, keywords and file properties of text.
func (p *Parser) Parse(ctx context.Context, path, text string) (*symbols.Outcome, error) {
	c := newCollector(text)
	extras := map[string]any{
		"file_path":    path,
		"text":         text,
		"emit_symbol":  c.emitSymbolFn(),
		"close_symbol": c.closeSymbolFn(),
		"emit_keyword": c.emitKeywordFn(),
		"set_property": c.setPropertyFn(),
	}
	if err := p.rt.eval(ctx, p.script, p.label, extras); err != nil {
		return nil, err
	}
	return c.outcome(), nil
}

type pendingSymbol struct {
	sym    symbols.Symbol
	parent int
}

// collector accumulates what one script run emits. Symbol ids are 1-based
// indexes into syms; 0 means "no parent".
type collector struct {
	lines    []string
	syms     []pendingSymbol
	keywords map[string][]symbols.Range
	props    map[string]any
}

func newCollector(text string) *collector {
	return &collector{
		lines:    splitLines(text),
		keywords: make(map[string][]symbols.Range),
		props:    make(map[string]any),
	}
}

func (c *collector) lineText(line int) string {
	if line < 0 || line >= len(c.lines) {
		return ""
	}
	return c.lines[line]
}

// emit_symbol({"name", "kind", "line", "detail", "parent"}) → id
func (c *collector) emitSymbolFn() *object.Builtin {
	return object.NewBuiltin("emit_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("emit_symbol", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("emit_symbol: %v", err)
		}
		name := getString(m, "name")
		if name == "" {
			return object.Errorf("emit_symbol: name is required")
		}
		line := getInt(m, "line")
		text := c.lineText(line)

		indent := len(text) - len(strings.TrimLeft(text, " \t+"))
		nameCol := wordIndex(text, name)
		if nameCol < 0 {
			nameCol = indent
		}
		sym := symbols.Symbol{
			Name:           name,
			Detail:         getString(m, "detail"),
			Kind:           symbols.KindFromString(getString(m, "kind")),
			Range:          symbols.NewRange(line, indent, line, len(text)),
			SelectionRange: symbols.NewRange(line, nameCol, line, nameCol+len(name)),
		}
		parent := getInt(m, "parent")
		if parent < 0 || parent > len(c.syms) {
			parent = 0
		}
		c.syms = append(c.syms, pendingSymbol{sym: sym, parent: parent})
		return object.NewInt(int64(len(c.syms)))
	})
}

// close_symbol(id, line) extends the symbol's range to the end of line.
func (c *collector) closeSymbolFn() *object.Builtin {
	return object.NewBuiltin("close_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("close_symbol", 2, len(args))
		}
		id, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("close_symbol: id: %v", err)
		}
		line, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("close_symbol: line: %v", err)
		}
		if id < 1 || int(id) > len(c.syms) {
			return object.Errorf("close_symbol: unknown symbol id %d", id)
		}
		r := &c.syms[id-1].sym.Range
		if int(line) >= r.Start.Line {
			r.End = symbols.Position{Line: int(line), Character: len(c.lineText(int(line)))}
		}
		return object.Nil
	})
}

// emit_keyword(word, line, start, end)
func (c *collector) emitKeywordFn() *object.Builtin {
	return object.NewBuiltin("emit_keyword", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 {
			return object.NewArgsError("emit_keyword", 4, len(args))
		}
		w, err := toString(args[0])
		if err != nil {
			return object.Errorf("emit_keyword: word: %v", err)
		}
		var pos [3]int64
		for i := range pos {
			if pos[i], err = toInt64(args[i+1]); err != nil {
				return object.Errorf("emit_keyword: argument %d: %v", i+2, err)
			}
		}
		line := int(pos[0])
		c.keywords[w] = append(c.keywords[w], symbols.NewRange(line, int(pos[1]), line, int(pos[2])))
		return object.Nil
	})
}

// set_property(key, value)
func (c *collector) setPropertyFn() *object.Builtin {
	return object.NewBuiltin("set_property", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("set_property", 2, len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return object.Errorf("set_property: key: %v", err)
		}
		c.props[key] = args[1].Interface()
		return object.Nil
	})
}

// outcome assembles the emitted symbols into a tree, preserving emission
// order among siblings.
func (c *collector) outcome() *symbols.Outcome {
	children := make(map[int][]int)
	var roots []int
	for i, p := range c.syms {
		id := i + 1
		if p.parent > 0 && p.parent < id {
			children[p.parent] = append(children[p.parent], id)
		} else {
			roots = append(roots, id)
		}
	}

	var build func(id int) symbols.Symbol
	build = func(id int) symbols.Symbol {
		s := c.syms[id-1].sym
		for _, ch := range children[id] {
			s.Children = append(s.Children, build(ch))
		}
		return s
	}

	out := &symbols.Outcome{
		Symbols:    make([]symbols.Symbol, 0, len(roots)),
		Keywords:   c.keywords,
		Properties: c.props,
	}
	for _, id := range roots {
		out.Symbols = append(out.Symbols, build(id))
	}
	return out
}

// wordIndex returns the byte offset of the first whole-word occurrence of w
// in s, or -1.
func wordIndex(s, w string) int {
	for off := 0; off <= len(s)-len(w); {
		i := strings.Index(s[off:], w)
		if i < 0 {
			return -1
		}
		i += off
		end := i + len(w)
		if (i == 0 || !isIdentPart(s[i-1])) && (end == len(s) || !isIdentPart(s[end])) {
			return i
		}
		off = i + 1
	}
	return -1
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	switch v := m[key].(type) {
	case *object.Int:
		return int(v.Value())
	case *object.Float:
		return int(v.Value())
	}
	return 0
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
