package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatParseSummaryText formats a parse run as readable text.
func formatParseSummaryText(w io.Writer, s CLIParseSummary) {
	fmt.Fprintf(w, "Makefile: %s\n", s.Makefile)
	fmt.Fprintf(w, "Library:  %s\n", s.Library)
	fmt.Fprintf(w, "Files:    %d (%d cached, %d parsed, %d failed)\n", s.Files, s.Cached, s.Parsed, len(s.Failed))
	fmt.Fprintf(w, "Workers:  %d\n", s.PoolSize)
	if s.Exported > 0 {
		fmt.Fprintf(w, "Exported: %d library files\n", s.Exported)
	}
	fmt.Fprintf(w, "Elapsed:  %dms\n", s.ElapsedMS)
	for _, f := range s.Failed {
		fmt.Fprintf(w, "  failed: %s\n", f)
	}
	if s.Cancelled {
		fmt.Fprintln(w, "Run cancelled")
	}
}

// formatSymbolsText formats a symbol tree as aligned columns, indenting
// children under their parent.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLINE\tDETAIL")
	writeSymbolRows(tw, syms, 0)
	tw.Flush()
}

func writeSymbolRows(w io.Writer, syms []CLISymbol, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range syms {
		fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\n", indent, s.Name, s.Kind, s.StartLine+1, s.Detail)
		writeSymbolRows(w, s.Children, depth+1)
	}
}

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine+1, loc.StartCol+1)
	}
}

// formatLensesText formats code lenses as "line: title" rows.
func formatLensesText(w io.Writer, lenses []CLILens) {
	for _, l := range lenses {
		fmt.Fprintf(w, "%d: %s\n", l.Line+1, l.Title)
	}
}

// formatMakefileText formats an analyzed makefile.
func formatMakefileText(w io.Writer, m CLIMakefile) {
	fmt.Fprintf(w, "Makefile: %s\n", m.Path)
	fmt.Fprintf(w, "Library:  %s\n", m.Library)
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE")
	for _, d := range m.Directives {
		fmt.Fprintf(tw, "%s\t%s\n", d.Key, d.Value)
	}
	tw.Flush()
}

// formatCacheEntriesText formats cached artifacts as aligned columns.
func formatCacheEntriesText(w io.Writer, entries []CLICacheEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BASE\tPATH\tEXPORTED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Base, e.Path, e.ExportedAt)
	}
	tw.Flush()
}

// outputResultText dispatches a CLIResult to the right text formatter.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIParseSummary:
		formatParseSummaryText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLILens:
		formatLensesText(w, v)
	case CLIMakefile:
		formatMakefileText(w, v)
	case []CLICacheEntry:
		formatCacheEntriesText(w, v)
	case string:
		fmt.Fprintln(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLISymbol:
		return len(r)
	case []CLILocation:
		return len(r)
	case []CLILens:
		return len(r)
	case []CLICacheEntry:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
