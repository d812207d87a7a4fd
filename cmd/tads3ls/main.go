package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jward/tads3ls"
	"github.com/jward/tads3ls/internal/config"
	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/preprocess"
	"github.com/jward/tads3ls/internal/runtime"
	"github.com/jward/tads3ls/scripts"
)

var (
	flagFormat     string
	flagConfig     string
	flagMakefile   string
	flagLogLevel   string
	flagStorage    string
	flagScriptsDir string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tads3ls",
	Short:         "TADS 3 project analysis",
	Long:          "tads3ls preprocesses and parses a TADS 3 project in parallel and caches library symbols between sessions.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .tads3ls.{json,yaml,toml} next to the makefile)")
	rootCmd.PersistentFlags().StringVarP(&flagMakefile, "makefile", "f", "", "project makefile (default: the only .t3m in the current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error|off (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagStorage, "storage", "", "library cache root (overrides globalStoragePath)")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "load parser scripts from disk path instead of embedded")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(lensCmd)
	rootCmd.AddCommand(makefileCmd)
	rootCmd.AddCommand(cacheCmd)
}

// env is everything a command needs, resolved from flags and config.
type env struct {
	makefile string
	cfg      *config.Config
	logger   *slog.Logger
}

// setup resolves the makefile, loads config and builds the logger.
func setup() (*env, error) {
	mk, err := resolveMakefile(flagMakefile)
	if err != nil {
		return nil, err
	}
	var cfg *config.Config
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load(filepath.Dir(mk))
	}
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagStorage != "" {
		cfg.GlobalStoragePath = flagStorage
	}
	logger := logging.NewWithFormat(os.Stderr, logging.LevelFromString(cfg.Log.Level), cfg.Log.Format)
	return &env{makefile: mk, cfg: cfg, logger: logger}, nil
}

// resolveMakefile returns the absolute makefile path from the flag, or the
// single .t3m file in the working directory.
func resolveMakefile(flag string) (string, error) {
	if flag != "" {
		abs, err := filepath.Abs(flag)
		if err != nil {
			return "", fmt.Errorf("resolving makefile %q: %w", flag, err)
		}
		return abs, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findMakefile(cwd)
}

// findMakefile looks for exactly one .t3m file in dir.
func findMakefile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.t3m"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no .t3m makefile in %s (use --makefile)", dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("several makefiles in %s, choose one with --makefile: %v", dir, matches)
	}
}

// newPreprocessor builds the configured preprocessor.
func (e *env) newPreprocessor() preprocess.Preprocessor {
	if len(e.cfg.Preprocessor.Command) > 0 {
		return preprocess.NewCommandPreprocessor(e.cfg.Preprocessor.Command,
			preprocess.WithCommandLogger(e.logger))
	}
	return preprocess.NewSourcePreprocessor(
		preprocess.WithSystemInclude(e.cfg.Preprocessor.SystemInclude...),
		preprocess.WithLibraryPath(e.cfg.Preprocessor.LibraryPath...),
		preprocess.WithLogger(e.logger),
	)
}

// newEngine builds an engine around the embedded (or --scripts-dir) parser.
func (e *env) newEngine(notifier tads3ls.Notifier) (*tads3ls.Engine, error) {
	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(e.logger)}
	if flagScriptsDir == "" {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	rt := runtime.NewRuntime(flagScriptsDir, rtOpts...)
	parser, err := runtime.NewParser(rt, "tads3")
	if err != nil {
		return nil, fmt.Errorf("loading parser: %w", err)
	}

	return tads3ls.New(parser.Parse, e.newPreprocessor(),
		tads3ls.WithMaxWorkers(e.cfg.MaxWorkers),
		tads3ls.WithWorkspaceOnly(e.cfg.WorkspaceOnly),
		tads3ls.WithGlobalStorage(e.cfg.GlobalStoragePath),
		tads3ls.WithLibraryPatterns(e.cfg.Library.Patterns...),
		tads3ls.WithVerifyFreshness(e.cfg.Cache.VerifyFreshness),
		tads3ls.WithParserVersion(parser.Version()),
		tads3ls.WithNotifier(notifier),
		tads3ls.WithLogger(e.logger),
	), nil
}

// parseFiles runs one engine pass. files may be nil for the whole project.
func (e *env) parseFiles(ctx context.Context, files []string) (*tads3ls.Engine, *tads3ls.Result, error) {
	engine, err := e.newEngine(tads3ls.LogNotifier{Logger: e.logger})
	if err != nil {
		return nil, nil, err
	}
	res, err := engine.Parse(ctx, e.makefile, files)
	if err != nil {
		return nil, nil, err
	}
	return engine, res, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
