package tads3ls

import (
	"log/slog"
	"time"

	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/makefile"
)

// Notifier receives run events for the protocol layer. Calls are made from
// the goroutine running Parse, one at a time.
type Notifier interface {
	// Makefile reports a newly analyzed build configuration.
	Makefile(path string, directives []makefile.Directive, variant makefile.Variant)
	// Preprocessed lists every file the preprocessor produced.
	Preprocessed(paths []string)
	// Progress reports one more file done, parsed or restored from cache.
	Progress(path string, completed, total, poolSize int)
	Success(paths []string, elapsed time.Duration)
	Failure(paths []string, err error)
}

// NopNotifier ignores every event.
type NopNotifier struct{}

func (NopNotifier) Makefile(string, []makefile.Directive, makefile.Variant) {}
func (NopNotifier) Preprocessed([]string)                                   {}
func (NopNotifier) Progress(string, int, int, int)                          {}
func (NopNotifier) Success([]string, time.Duration)                         {}
func (NopNotifier) Failure([]string, error)                                 {}

// LogNotifier writes every event to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) log() *slog.Logger { return logging.OrDiscard(n.Logger) }

func (n LogNotifier) Makefile(path string, directives []makefile.Directive, variant makefile.Variant) {
	n.log().Info("makefile analyzed", "path", path, "directives", len(directives), "library", variant.String())
}

func (n LogNotifier) Preprocessed(paths []string) {
	n.log().Info("preprocessing done", "files", len(paths))
}

func (n LogNotifier) Progress(path string, completed, total, poolSize int) {
	n.log().Debug("file done", "path", path, "completed", completed, "total", total, "pool", poolSize)
}

func (n LogNotifier) Success(paths []string, elapsed time.Duration) {
	n.log().Info("all files parsed", "files", len(paths), "elapsed", elapsed)
}

func (n LogNotifier) Failure(paths []string, err error) {
	n.log().Error("parsing failed", "files", len(paths), "error", err)
}
