package tads3ls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/tads3ls/internal/cache"
	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/pool"
)

// Result summarizes one parse run.
type Result struct {
	Makefile string
	Variant  makefile.Variant
	Files    []string // target set, in dispatch order
	Cached   []string // restored from the library cache instead of parsed
	Parsed   []string // in completion order
	Failed   []string // parse jobs that returned an error
	PoolSize int
	Stats    pool.Stats
	Imported []cache.ItemResult
	Exported []cache.ItemResult
	Elapsed  time.Duration

	// Empty is set when the target set was empty and nothing ran.
	Empty bool
	// Cancelled is set when ctx ended the run early. Symbols merged before
	// that point stay in the store.
	Cancelled bool
}

// Parse runs the pipeline for the project built by makefilePath. filePaths
// selects the files to parse in the given order; nil parses every
// preprocessed file, project files first and larger files before smaller.
//
// The run goes through:
//
//	Idle → ConfigResolved → Preprocessed → Ordered → (CacheSeeded) →
//	Dispatching → Draining → Finalizing → Idle
//
// The makefile is analyzed only when its path differs from the previous
// run. On the first run of a session, library files are restored from the
// cache when possible and the cache is rewritten at the end.
//
// A second Parse while one is active returns ErrRunInProgress. A cancelled
// ctx stops preprocessing or dispatch; jobs already running finish and are
// merged, the cache is not written and ctx's error is returned with
// Result.Cancelled set. A panicking Notifier fails the run with *PoolError.
func (e *Engine) Parse(ctx context.Context, makefilePath string, filePaths []string) (*Result, error) {
	sess, ok := e.begin()
	if !ok {
		return nil, ErrRunInProgress
	}
	defer e.end()
	start := time.Now()

	// ---- ConfigResolved ----
	abs, err := filepath.Abs(makefilePath)
	if err != nil {
		return nil, e.fail(filePaths, &ConfigError{Path: makefilePath, Err: err})
	}
	if err := e.resolveConfig(sess, abs); err != nil {
		return nil, e.fail(filePaths, err)
	}
	e.setState(StateConfigResolved)
	res := &Result{Makefile: abs, Variant: sess.variant}

	// ---- Preprocessed ----
	texts, err := e.pre.PreprocessAll(ctx, abs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Cancelled = true
			res.Elapsed = time.Since(start)
			e.logger.Info("parse run cancelled during preprocessing", "makefile", abs)
			return res, ctxErr
		}
		return nil, e.fail(filePaths, &PreprocessError{Makefile: abs, Err: err})
	}
	e.texts.ReplaceAll(texts)
	if err := e.deliver("preprocessed", func() { e.notifier.Preprocessed(e.texts.Paths()) }); err != nil {
		return res, e.fail(filePaths, err)
	}
	e.setState(StatePreprocessed)

	// ---- Ordered ----
	baseDir := filepath.Dir(abs)
	files := e.targetFiles(filePaths, baseDir)
	e.setState(StateOrdered)
	res.Files = files
	if len(files) == 0 {
		e.logger.Info("no files to parse", "makefile", abs)
		res.Empty = true
		res.Elapsed = time.Since(start)
		return res, nil
	}

	total := len(files)
	poolSize := pool.Size(e.maxWorkers, total)
	res.PoolSize = poolSize
	completed := 0
	progress := func(path string) {
		completed++
		e.notifier.Progress(path, completed, total, poolSize)
	}

	// ---- CacheSeeded ----
	var lib *cache.Store
	if sess.firstRun {
		lib = e.openCache(sess.variant)
		defer lib.Close()
	}
	satisfied := map[string]bool{}
	if lib != nil {
		readStart := time.Now()
		res.Imported, satisfied = lib.Import(ctx, e.texts.Paths(), e.symbols, e.texts)
		e.setState(StateCacheSeeded)
		for _, p := range files {
			if satisfied[p] {
				res.Cached = append(res.Cached, p)
				if err := e.deliver("progress "+p, func() { progress(p) }); err != nil {
					res.Elapsed = time.Since(start)
					return res, e.fail(files, err)
				}
			}
		}
		e.logger.Info("cached library files read", "hits", len(satisfied), "elapsed", time.Since(readStart))
	}

	// ---- Dispatching / Draining ----
	jobs := make([]pool.Job, 0, total-len(res.Cached))
	for _, p := range files {
		if satisfied[p] {
			continue
		}
		text, _ := e.texts.Get(p)
		jobs = append(jobs, pool.Job{Path: p, Text: text})
	}
	e.setState(StateDispatching)
	e.logger.Info("dispatching parse jobs", "jobs", len(jobs), "cached", len(res.Cached), "pool", poolSize)

	draining := false
	workers := pool.New(poolSize, e.parse, pool.WithLogger(e.logger))
	res.Stats, err = workers.Run(ctx, jobs, func(c pool.Completion) {
		if !draining {
			draining = true
			e.setState(StateDraining)
		}
		if c.Err != nil {
			// Previous entries for the file stay as they were.
			e.logger.Warn("parse failed", "path", c.Path, "error", c.Err)
			res.Failed = append(res.Failed, c.Path)
		} else {
			e.symbols.Set(c.Path, c.Outcome)
			res.Parsed = append(res.Parsed, c.Path)
		}
		progress(c.Path)
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		var poolErr *PoolError
		if errors.As(err, &poolErr) {
			return res, e.fail(files, err)
		}
		res.Cancelled = true
		e.logger.Info("parse run cancelled", "completed", completed, "total", total)
		return res, err
	}
	e.logger.Info("all files parsed", "files", total, "failed", len(res.Failed), "elapsed", res.Elapsed)
	if err := e.deliver("success", func() { e.notifier.Success(files, res.Elapsed) }); err != nil {
		return res, e.fail(files, err)
	}

	// ---- Finalizing ----
	e.setState(StateFinalizing)
	if sess.firstRun {
		if lib != nil {
			writeStart := time.Now()
			res.Exported = lib.Export(ctx, e.texts.Paths(), e.symbols, e.texts)
			e.logger.Info("cached library files written", "files", len(res.Exported), "elapsed", time.Since(writeStart))
		}
		sess.firstRun = false
	}
	return res, nil
}

// resolveConfig analyzes the makefile unless it is the one already
// resolved in this session.
func (e *Engine) resolveConfig(sess *Session, path string) error {
	if sess.makefile == path {
		return nil
	}
	directives, err := e.analyze(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	variant := makefile.DetectVariant(directives)
	e.logger.Info("project library detected", "makefile", path, "library", variant.String())
	// Resolve only once the client has the configuration, so a failed
	// notification is repeated on the next run.
	if err := e.deliver("makefile", func() { e.notifier.Makefile(path, directives, variant) }); err != nil {
		return err
	}
	sess.resolve(path, directives)
	return nil
}

// targetFiles returns the files to parse: filePaths as given, or every
// preprocessed file in priority order.
func (e *Engine) targetFiles(filePaths []string, baseDir string) []string {
	var files []string
	if filePaths == nil {
		files = OrderFiles(e.texts.Paths(), baseDir, e.sizeOf)
	} else {
		files = make([]string, 0, len(filePaths))
		for _, p := range filePaths {
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			files = append(files, p)
		}
	}
	if e.workspaceOnly {
		files = WorkspaceOnly(files, baseDir)
		e.logger.Info("parsing workspace files only", "dir", baseDir, "files", len(files))
	}
	return files
}

// sizeOf ranks files for ordering: the size on disk, or the preprocessed
// length when the file cannot be stat'ed.
func (e *Engine) sizeOf(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	text, _ := e.texts.Get(path)
	return int64(len(text))
}

func (e *Engine) openCache(variant makefile.Variant) *cache.Store {
	lib, err := cache.Open(e.storageRoot, variant,
		cache.WithClassifier(makefile.NewClassifier(variant, e.libraryPatterns...)),
		cache.WithFreshnessCheck(e.verifyFreshness),
		cache.WithParserVersion(e.parserVersion),
		cache.WithLogger(e.logger),
	)
	if err != nil {
		e.logger.Error("library cache unavailable", "root", e.storageRoot, "error", err)
		return nil
	}
	return lib
}

// fail reports a fatal error for paths and returns it.
func (e *Engine) fail(paths []string, err error) error {
	e.logger.Error("parse run failed", "error", err)
	if nerr := e.deliver("failure", func() { e.notifier.Failure(paths, err) }); nerr != nil {
		e.logger.Error("failure notification lost", "error", nerr)
	}
	return err
}

// deliver invokes a notifier callback outside the worker pool. A panic in
// the callback is returned as a *PoolError, the same as one raised while
// merging completions.
func (e *Engine) deliver(event string, notify func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifier panicked", "event", event, "panic", r)
			err = &PoolError{Op: "notify " + event, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	notify()
	return nil
}
