package pool

import "fmt"

// ParseJobError is a single file's parse failure. It never stops the run.
type ParseJobError struct {
	Path string
	Err  error
}

func (e *ParseJobError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseJobError) Unwrap() error { return e.Err }

// PoolError is a scheduler-level failure. The run that returns it is failed
// as a whole.
type PoolError struct {
	Op  string
	Err error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool %s: %v", e.Op, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }
