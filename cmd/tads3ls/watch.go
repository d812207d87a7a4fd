package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/tads3ls"
)

// change classifies a file system event for the watcher.
type change int

const (
	changeIgnore   change = iota
	changeFile            // a known source file; re-parse just that file
	changeProject         // headers, new or removed files; re-parse everything
	changeMakefile        // the build itself changed; start a new session
)

// classifyChange decides what a write to path means. known reports whether
// path was part of the last run.
func classifyChange(path, makefilePath string, op fsnotify.Op, known func(string) bool) change {
	if op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return changeIgnore
	}
	if path == makefilePath {
		return changeMakefile
	}
	switch filepath.Ext(path) {
	case ".t3m", ".tl":
		return changeMakefile
	case ".h":
		return changeProject
	case ".t":
		if op&fsnotify.Write != 0 && known(path) {
			return changeFile
		}
		return changeProject
	default:
		return changeIgnore
	}
}

// watchDirs returns the sorted set of directories holding paths plus the
// makefile's directory.
func watchDirs(paths []string, makefilePath string) []string {
	seen := map[string]bool{filepath.Dir(makefilePath): true}
	for _, p := range paths {
		seen[filepath.Dir(p)] = true
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// watchProject re-runs the engine when project files change, until ctx ends.
// Events are debounced; runs are serialized on this goroutine.
func watchProject(ctx context.Context, cfg *env, engine *tads3ls.Engine, debounce time.Duration) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return outputError("parse", fmt.Errorf("creating watcher: %w", err))
	}
	defer fw.Close()

	for _, dir := range watchDirs(engine.Texts().Paths(), cfg.makefile) {
		if err := fw.Add(dir); err != nil {
			cfg.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}
	cfg.logger.Info("watching for changes", "makefile", cfg.makefile)

	known := func(p string) bool {
		_, ok := engine.Texts().Get(p)
		return ok
	}

	ready := make(chan struct{}, 1)
	var timer *time.Timer
	pending := map[string]bool{}
	full, reset := false, false

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch classifyChange(event.Name, cfg.makefile, event.Op, known) {
			case changeIgnore:
				continue
			case changeFile:
				pending[event.Name] = true
			case changeProject:
				full = true
			case changeMakefile:
				full, reset = true, true
			}
			cfg.logger.Debug("file changed", "path", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case ready <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("watcher error", "error", err)

		case <-ready:
			var files []string
			if !full {
				files = make([]string, 0, len(pending))
				for p := range pending {
					files = append(files, p)
				}
				sort.Strings(files)
			}
			if reset {
				if err := engine.Reset(); err != nil {
					cfg.logger.Warn("session reset failed", "error", err)
				}
			}
			pending = map[string]bool{}
			full, reset = false, false

			res, err := engine.Parse(ctx, cfg.makefile, files)
			if err != nil {
				if isCancelled(res, err) {
					return nil
				}
				cfg.logger.Error("re-parse failed", "error", err)
				continue
			}
			if err := outputResult(CLIResult{Command: "parse", Results: toCLIParseSummary(res)}); err != nil {
				return err
			}
			// New directories may have joined the build.
			for _, dir := range watchDirs(engine.Texts().Paths(), cfg.makefile) {
				_ = fw.Add(dir)
			}
		}
	}
}
