package preprocess

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// TADS 3 preprocessor lines share C's syntax, so the C grammar parses them.
const directiveQuery = `
(preproc_include path: (_) @path) @include
(preproc_def name: (identifier) @name) @define
(preproc_function_def name: (identifier) @name) @macro
`

type directiveKind int

const (
	kindInclude directiveKind = iota + 1
	kindDefine
	kindMacro
)

type directive struct {
	kind   directiveKind
	line   int
	path   string // include target without delimiters
	system bool   // <path> rather than "path"
	name   string
	value  string
}

// directiveMask marks the lines belonging to preprocessor directives,
// including backslash continuations.
func directiveMask(lines []string) []bool {
	mask := make([]bool, len(lines))
	cont := false
	for i, l := range lines {
		if cont || strings.HasPrefix(strings.TrimLeft(l, " \t"), "#") {
			mask[i] = true
			cont = strings.HasSuffix(strings.TrimRight(l, " \t"), "\\")
		}
	}
	return mask
}

// scanDirectives finds #include and #define directives in lines. Only the
// masked lines are handed to the parser; the rest become blank so row
// numbers stay aligned with the original file.
func scanDirectives(ctx context.Context, lines []string, mask []bool) ([]directive, error) {
	synthetic := make([]string, len(lines))
	for i, l := range lines {
		if mask[i] {
			synthetic[i] = l
		}
	}
	src := []byte(strings.Join(synthetic, "\n"))

	lang := c.GetLanguage()
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse directives: %w", err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(directiveQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("compile directive query: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tree.RootNode())

	var out []directive
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var d directive
		for _, capture := range match.Captures {
			node := capture.Node
			switch q.CaptureNameForId(capture.Index) {
			case "include":
				d.kind = kindInclude
				d.line = int(node.StartPoint().Row)
			case "define":
				d.kind = kindDefine
				d.line = int(node.StartPoint().Row)
				if v := node.ChildByFieldName("value"); v != nil {
					d.value = strings.TrimSpace(v.Content(src))
				}
			case "macro":
				d.kind = kindMacro
				d.line = int(node.StartPoint().Row)
			case "path":
				raw := node.Content(src)
				d.system = strings.HasPrefix(raw, "<")
				d.path = strings.Trim(raw, `"<>`)
			case "name":
				d.name = node.Content(src)
			}
		}
		if d.kind != 0 {
			out = append(out, d)
		}
	}
	return out, nil
}
