package main

import (
	"github.com/jward/tads3ls"
	"github.com/jward/tads3ls/internal/lens"
	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/store"
	"github.com/jward/tads3ls/internal/symbols"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIParseSummary reports one parse run.
type CLIParseSummary struct {
	Makefile  string   `json:"makefile"`
	Library   string   `json:"library"`
	Files     int      `json:"files"`
	Cached    int      `json:"cached"`
	Parsed    int      `json:"parsed"`
	Failed    []string `json:"failed,omitempty"`
	PoolSize  int      `json:"pool_size"`
	Exported  int      `json:"exported"`
	ElapsedMS int64    `json:"elapsed_ms"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// CLISymbol is a JSON-friendly document symbol.
type CLISymbol struct {
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Detail    string      `json:"detail,omitempty"`
	StartLine int         `json:"start_line"`
	StartCol  int         `json:"start_col"`
	EndLine   int         `json:"end_line"`
	EndCol    int         `json:"end_col"`
	Children  []CLISymbol `json:"children,omitempty"`
}

// CLILocation is a symbol or word position in a file.
type CLILocation struct {
	File      string `json:"file"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLILens is a JSON-friendly code lens.
type CLILens struct {
	Line         int    `json:"line"`
	Title        string `json:"title"`
	Command      string `json:"command"`
	Preprocessed string `json:"preprocessed"`
}

// CLIDirective is one makefile option.
type CLIDirective struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CLIMakefile describes an analyzed makefile.
type CLIMakefile struct {
	Path       string         `json:"path"`
	Library    string         `json:"library"`
	Directives []CLIDirective `json:"directives"`
}

// CLICacheEntry is one cached library artifact.
type CLICacheEntry struct {
	Base        string `json:"base"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash,omitempty"`
	ExportedAt  string `json:"exported_at"`
}

func toCLIParseSummary(res *tads3ls.Result) CLIParseSummary {
	exported := 0
	for _, r := range res.Exported {
		if r.Hit {
			exported++
		}
	}
	return CLIParseSummary{
		Makefile:  res.Makefile,
		Library:   res.Variant.String(),
		Files:     len(res.Files),
		Cached:    len(res.Cached),
		Parsed:    len(res.Parsed),
		Failed:    res.Failed,
		PoolSize:  res.PoolSize,
		Exported:  exported,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Cancelled: res.Cancelled,
	}
}

func toCLISymbols(syms []symbols.Symbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, CLISymbol{
			Name:      s.Name,
			Kind:      s.Kind.String(),
			Detail:    s.Detail,
			StartLine: s.Range.Start.Line,
			StartCol:  s.Range.Start.Character,
			EndLine:   s.Range.End.Line,
			EndCol:    s.Range.End.Character,
			Children:  toCLISymbols(s.Children),
		})
	}
	return out
}

func toCLILenses(lenses []lens.Lens) []CLILens {
	out := make([]CLILens, 0, len(lenses))
	for _, l := range lenses {
		out = append(out, CLILens{
			Line:         l.Range.Start.Line,
			Title:        l.Title,
			Command:      l.Command,
			Preprocessed: l.Preprocessed,
		})
	}
	return out
}

func toCLIMakefile(path string, directives []makefile.Directive) CLIMakefile {
	out := CLIMakefile{
		Path:       path,
		Library:    makefile.DetectVariant(directives).String(),
		Directives: make([]CLIDirective, 0, len(directives)),
	}
	for _, d := range directives {
		out.Directives = append(out.Directives, CLIDirective{Key: d.Key, Value: d.Value})
	}
	return out
}

func toCLICacheEntries(arts []*store.Artifact) []CLICacheEntry {
	out := make([]CLICacheEntry, 0, len(arts))
	for _, a := range arts {
		out = append(out, CLICacheEntry{
			Base:        a.Base,
			Path:        a.Path,
			ContentHash: a.ContentHash,
			ExportedAt:  a.ExportedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}
