package symbols

// Position is a zero-based line/character location, LSP style.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange builds a Range from line/character pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// Contains reports whether pos falls inside r.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

// Kind mirrors the LSP SymbolKind numbering.
type Kind int

const (
	KindFile       Kind = 1
	KindModule     Kind = 2
	KindClass      Kind = 5
	KindMethod     Kind = 6
	KindProperty   Kind = 7
	KindFunction   Kind = 12
	KindVariable   Kind = 13
	KindConstant   Kind = 14
	KindObject     Kind = 19
	KindKey        Kind = 20
	KindNull       Kind = 21
	KindEnumMember Kind = 22
)

var kindNames = map[Kind]string{
	KindFile:       "file",
	KindModule:     "module",
	KindClass:      "class",
	KindMethod:     "method",
	KindProperty:   "property",
	KindFunction:   "function",
	KindVariable:   "variable",
	KindConstant:   "constant",
	KindObject:     "object",
	KindKey:        "key",
	KindNull:       "null",
	KindEnumMember: "enummember",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromString maps a lowercase kind name to its Kind. Unknown names map to
// KindVariable.
func KindFromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindVariable
}

// Symbol is a hierarchical document symbol.
type Symbol struct {
	Name           string   `json:"name"`
	Detail         string   `json:"detail,omitempty"`
	Kind           Kind     `json:"kind"`
	Range          Range    `json:"range"`
	SelectionRange Range    `json:"selectionRange"`
	Children       []Symbol `json:"children,omitempty"`
}

// Outcome is what parsing one file produces.
type Outcome struct {
	Symbols    []Symbol
	Keywords   map[string][]Range
	Properties map[string]any
}
