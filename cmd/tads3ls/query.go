package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/tads3ls"
	"github.com/jward/tads3ls/internal/lens"
	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/symbols"
)

var flagLimit int

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the document symbols of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return outputError("symbols", err)
		}
		path, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("symbols", err)
		}
		engine, _, err := env.parseFiles(context.Background(), []string{path})
		if err != nil {
			return outputError("symbols", err)
		}
		if _, ok := engine.Texts().Get(path); !ok {
			return outputError("symbols", fmt.Errorf("%s is not part of the build", path))
		}
		syms, ok := engine.Symbols().Symbols(path)
		if !ok {
			return outputError("symbols", fmt.Errorf("no symbols for %s: parse failed", path))
		}
		return outputResult(CLIResult{Command: "symbols", Results: toCLISymbols(syms)})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find where a symbol is defined",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return outputError("find", err)
		}
		engine, _, err := env.parseFiles(context.Background(), nil)
		if err != nil {
			return outputError("find", err)
		}
		loc, ok := engine.Symbols().FindSymbol(args[0])
		if !ok {
			return outputResult(CLIResult{Command: "find", Results: nil})
		}
		return outputResult(CLIResult{Command: "find", Results: []CLILocation{toCLILocation(loc)}})
	},
}

var refsCmd = &cobra.Command{
	Use:   "refs <word>",
	Short: "List every occurrence of a word across the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return outputError("refs", err)
		}
		engine, _, err := env.parseFiles(context.Background(), nil)
		if err != nil {
			return outputError("refs", err)
		}
		locs := engine.Symbols().References(args[0])
		total := len(locs)
		if flagLimit > 0 && len(locs) > flagLimit {
			locs = locs[:flagLimit]
		}
		out := make([]CLILocation, 0, len(locs))
		for _, l := range locs {
			out = append(out, toCLILocation(l))
		}
		return outputResult(CLIResult{Command: "refs", Results: out, TotalCount: &total})
	},
}

var lensCmd = &cobra.Command{
	Use:   "lens <file>",
	Short: "Show lines whose preprocessed form differs from the source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return outputError("lens", err)
		}
		path, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("lens", err)
		}
		original, err := os.ReadFile(path)
		if err != nil {
			return outputError("lens", fmt.Errorf("reading %s: %w", path, err))
		}
		texts, err := env.newPreprocessor().PreprocessAll(context.Background(), env.makefile)
		if err != nil {
			return outputError("lens", &tads3ls.PreprocessError{Makefile: env.makefile, Err: err})
		}
		pre, ok := texts[path]
		if !ok {
			return outputError("lens", fmt.Errorf("%s is not part of the build", path))
		}
		return outputResult(CLIResult{Command: "lens", Results: toCLILenses(lens.Annotate(string(original), pre))})
	},
}

var makefileCmd = &cobra.Command{
	Use:   "makefile",
	Short: "Show the makefile's directives and detected library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mk, err := resolveMakefile(flagMakefile)
		if err != nil {
			return outputError("makefile", err)
		}
		directives, err := makefile.Analyze(mk)
		if err != nil {
			return outputError("makefile", &tads3ls.ConfigError{Path: mk, Err: err})
		}
		return outputResult(CLIResult{Command: "makefile", Results: toCLIMakefile(mk, directives)})
	},
}

func init() {
	refsCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results (0 for all)")
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(refsCmd)
}

func toCLILocation(l symbols.Location) CLILocation {
	r := l.Symbol.SelectionRange
	return CLILocation{
		File:      l.Path,
		Name:      l.Symbol.Name,
		StartLine: r.Start.Line,
		StartCol:  r.Start.Character,
		EndLine:   r.End.Line,
		EndCol:    r.End.Character,
	}
}
