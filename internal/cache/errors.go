package cache

import "fmt"

// CacheIOError reports a failed read or write of one cache artifact. Outside
// of Open it is always recovered: a failed read is a miss, a failed write is
// skipped.
type CacheIOError struct {
	Op       string // "mkdir", "read", "decode", "encode" or "write"
	Path     string // library source file
	Artifact string // cache file involved
	Err      error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s (%s): %v", e.Op, e.Path, e.Artifact, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }
