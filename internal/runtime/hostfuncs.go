package runtime

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/risor-io/risor/object"
)

// patternCache holds compiled re_match patterns. Scripts pass the same few
// literals for every line of every file.
var patternCache sync.Map // string → *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := patternCache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// makeSplitLinesFn creates the "split_lines" host function.
//
// split_lines(text) → []string
func makeSplitLinesFn() *object.Builtin {
	return object.NewBuiltin("split_lines", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("split_lines", 1, len(args))
		}
		text, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("split_lines: text must be a string, got %s", args[0].Type())
		}
		lines := splitLines(text.Value())
		items := make([]object.Object, len(lines))
		for i, l := range lines {
			items[i] = object.NewString(l)
		}
		return object.NewList(items)
	})
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// makeReMatchFn creates the "re_match" host function.
//
// re_match(pattern, s) → []string or nil
//
// The list holds the whole match followed by each group; unmatched groups
// are empty strings.
func makeReMatchFn() *object.Builtin {
	return object.NewBuiltin("re_match", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("re_match", 2, len(args))
		}
		pattern, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("re_match: pattern must be a string, got %s", args[0].Type())
		}
		s, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("re_match: subject must be a string, got %s", args[1].Type())
		}
		re, err := compilePattern(pattern.Value())
		if err != nil {
			return object.Errorf("re_match: invalid pattern: %v", err)
		}
		m := re.FindStringSubmatch(s.Value())
		if m == nil {
			return object.Nil
		}
		items := make([]object.Object, len(m))
		for i, g := range m {
			items[i] = object.NewString(g)
		}
		return object.NewList(items)
	})
}

// makeIdentifiersFn creates the "identifiers" host function.
//
// identifiers(line) → []{"word", "start", "end"}
//
// String literals and comments are skipped.
func makeIdentifiersFn() *object.Builtin {
	return object.NewBuiltin("identifiers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("identifiers", 1, len(args))
		}
		line, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("identifiers: line must be a string, got %s", args[0].Type())
		}
		words := identifiers(line.Value())
		items := make([]object.Object, len(words))
		for i, w := range words {
			items[i] = object.NewMap(map[string]object.Object{
				"word":  object.NewString(w.word),
				"start": object.NewInt(int64(w.start)),
				"end":   object.NewInt(int64(w.end)),
			})
		}
		return object.NewList(items)
	})
}

// makeBraceDeltaFn creates the "brace_delta" host function.
//
// brace_delta(line) → int
//
// Opening minus closing braces, ignoring string literals and comments.
func makeBraceDeltaFn() *object.Builtin {
	return object.NewBuiltin("brace_delta", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("brace_delta", 1, len(args))
		}
		line, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("brace_delta: line must be a string, got %s", args[0].Type())
		}
		return object.NewInt(int64(braceDelta(line.Value())))
	})
}

// makeEndsStmtFn creates the "ends_stmt" host function.
//
// ends_stmt(line) → bool
//
// Reports whether the code part of line ends with a semicolon.
func makeEndsStmtFn() *object.Builtin {
	return object.NewBuiltin("ends_stmt", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("ends_stmt", 1, len(args))
		}
		line, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("ends_stmt: line must be a string, got %s", args[0].Type())
		}
		return object.NewBool(endsStatement(line.Value()))
	})
}

type word struct {
	word       string
	start, end int
}

// scanCode calls fn for every byte of line outside string literals and
// comments.
func scanCode(line string, fn func(i int, c byte)) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			end := strings.Index(line[i+2:], "*/")
			if end < 0 {
				return
			}
			i += end + 3
		default:
			fn(i, c)
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// identifiers returns the identifier runs of line. Runs starting with a digit
// (numbers, 3rd) are dropped.
func identifiers(line string) []word {
	var out []word
	start, prev := -1, -2
	end := func() {
		if start >= 0 && isIdentStart(line[start]) {
			out = append(out, word{word: line[start : prev+1], start: start, end: prev + 1})
		}
		start = -1
	}
	scanCode(line, func(i int, c byte) {
		if start >= 0 && (i != prev+1 || !isIdentPart(c)) {
			end()
		}
		if start < 0 && isIdentPart(c) {
			start = i
		}
		prev = i
	})
	end()
	return out
}

func braceDelta(line string) int {
	n := 0
	scanCode(line, func(_ int, c byte) {
		switch c {
		case '{':
			n++
		case '}':
			n--
		}
	})
	return n
}

func endsStatement(line string) bool {
	last := byte(0)
	scanCode(line, func(_ int, c byte) {
		if c != ' ' && c != '\t' {
			last = c
		}
	})
	// A line ending inside a string literal reports the last code byte
	// before it.
	return last == ';'
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "script")
}
