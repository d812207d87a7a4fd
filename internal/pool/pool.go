// Package pool runs per-file parse jobs on a bounded set of workers and hands
// every completion to a single consumer on the calling goroutine.
//
// The shape is three phases, as in a classic fan-out/fan-in:
//
//	dispatch (one goroutine):  feed jobs to an unbuffered channel, checking ctx before each send
//	parse (size goroutines):   run the parse function, recover panics
//	merge (caller goroutine):  invoke handle once per completion, in arrival order
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/symbols"
)

// ParseFunc parses one file's preprocessed text. It must not retain or share
// mutable state with other invocations.
type ParseFunc func(ctx context.Context, path, text string) (*symbols.Outcome, error)

// Job is one unit of work.
type Job struct {
	Path string
	Text string
}

// Completion is the result of one job. Exactly one of Outcome and Err is set.
type Completion struct {
	Path    string
	Outcome *symbols.Outcome
	Err     error
	Elapsed time.Duration
}

// Stats summarizes a run.
type Stats struct {
	Queued    int
	Completed int
	Failed    int
	Cancelled bool
}

// Pool is a bounded parse scheduler. A Pool holds no per-run state and may be
// reused for sequential runs.
type Pool struct {
	size   int
	parse  ParseFunc
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = logging.OrDiscard(l) }
}

// Size returns the worker count for fileCount files: min(maxThreads, fileCount),
// never less than 1.
func Size(maxThreads, fileCount int) int {
	return max(min(maxThreads, fileCount), 1)
}

// New creates a Pool with size workers. A size below 1 is raised to 1.
func New(size int, parse ParseFunc, opts ...Option) *Pool {
	p := &Pool{
		size:   max(size, 1),
		parse:  parse,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size reports the number of workers.
func (p *Pool) Size() int { return p.size }

// Run parses jobs and calls handle for each completion, including failed
// ones, from the calling goroutine. Run returns once every dispatched job has
// completed and every worker has exited.
//
// When ctx is cancelled no further jobs are dispatched. Jobs already taken by
// a worker run to completion and are still delivered; Run then returns the
// context's error with Stats.Cancelled set. A panic in handle stops dispatch,
// drains the workers and is returned as *PoolError.
func (p *Pool) Run(ctx context.Context, jobs []Job, handle func(Completion)) (Stats, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Jobs never observe cancellation; only dispatch does.
	jobCtx := context.WithoutCancel(ctx)

	work := make(chan Job)
	results := make(chan Completion, p.size)
	queued := 0

	var g errgroup.Group
	g.Go(func() error {
		defer close(work)
		for _, j := range jobs {
			if runCtx.Err() != nil {
				return nil
			}
			select {
			case work <- j:
				queued++
			case <-runCtx.Done():
				return nil
			}
		}
		return nil
	})
	for range p.size {
		g.Go(func() error {
			for j := range work {
				results <- p.runJob(jobCtx, j)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var stats Stats
	var runErr error
	for c := range results {
		stats.Completed++
		if c.Err != nil {
			stats.Failed++
		}
		if err := deliver(handle, c); err != nil {
			runErr = err
			cancel()
			for range results {
			}
			break
		}
	}

	// results is closed only after g.Wait, so queued is settled here.
	stats.Queued = queued
	if runErr != nil {
		return stats, runErr
	}
	if err := ctx.Err(); err != nil {
		stats.Cancelled = true
		p.logger.Info("parse run cancelled", "queued", queued, "total", len(jobs), "completed", stats.Completed)
		return stats, err
	}
	return stats, nil
}

func (p *Pool) runJob(ctx context.Context, j Job) (c Completion) {
	start := time.Now()
	c.Path = j.Path
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("parse job panicked", "path", j.Path, "panic", r, "stack", string(debug.Stack()))
			c.Outcome = nil
			c.Err = &ParseJobError{Path: j.Path, Err: fmt.Errorf("panic: %v", r)}
		}
		c.Elapsed = time.Since(start)
	}()

	out, err := p.parse(ctx, j.Path, j.Text)
	if err != nil {
		c.Err = &ParseJobError{Path: j.Path, Err: err}
		return c
	}
	if out == nil {
		out = &symbols.Outcome{}
	}
	c.Outcome = out
	return c
}

func deliver(handle func(Completion), c Completion) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PoolError{Op: "handle " + c.Path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	handle(c)
	return nil
}
