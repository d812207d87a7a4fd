package tads3ls

import (
	"errors"
	"fmt"

	"github.com/jward/tads3ls/internal/cache"
	"github.com/jward/tads3ls/internal/pool"
)

// ErrRunInProgress is returned by Parse and Reset while a run is active.
var ErrRunInProgress = errors.New("tads3ls: parse run already in progress")

// ConfigError reports an unreadable build configuration. It is fatal to the
// run and leaves all state untouched.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tads3ls: analyze makefile %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PreprocessError reports a failed preprocessing pass. It is fatal to the run.
type PreprocessError struct {
	Makefile string
	Err      error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("tads3ls: preprocess %s: %v", e.Makefile, e.Err)
}

func (e *PreprocessError) Unwrap() error { return e.Err }

// Errors raised below the root package, re-exported so callers need only
// this import.
type (
	PoolError     = pool.PoolError
	ParseJobError = pool.ParseJobError
	CacheIOError  = cache.CacheIOError
)
