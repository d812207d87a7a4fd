package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tads3ls"
)

var (
	flagWatch    bool
	flagDebounce time.Duration
)

var parseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Preprocess and parse the project",
	Long: `Preprocess every file the makefile builds and parse them on a worker pool.
Library files are restored from the cache under globalStoragePath when it is
set. With files given, only those files are parsed, in the order given.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep running and re-parse on file changes")
	parseCmd.Flags().DurationVar(&flagDebounce, "debounce", 300*time.Millisecond, "quiet period before a watched change triggers a run")
}

func runParse(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return outputError("parse", err)
	}
	files, err := resolveFiles(args)
	if err != nil {
		return outputError("parse", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := env.newEngine(tads3ls.LogNotifier{Logger: env.logger})
	if err != nil {
		return outputError("parse", err)
	}
	res, err := engine.Parse(ctx, env.makefile, files)
	if err != nil && !isCancelled(res, err) {
		return outputError("parse", err)
	}
	if err := outputResult(CLIResult{Command: "parse", Results: toCLIParseSummary(res)}); err != nil {
		return err
	}
	if !flagWatch || ctx.Err() != nil {
		return nil
	}
	return watchProject(ctx, env, engine, flagDebounce)
}

// resolveFiles makes file arguments absolute. No arguments means nil, which
// parses the whole project.
func resolveFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	files := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := resolveFilePath(a)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	return files, nil
}

// isCancelled reports whether a run stopped because of an interrupt rather
// than a failure.
func isCancelled(res *tads3ls.Result, err error) bool {
	return res != nil && res.Cancelled && errors.Is(err, context.Canceled)
}
