package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jward/tads3ls/internal/symbols"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{Path: fmt.Sprintf("/game/file%d.t", i), Text: fmt.Sprintf("obj%d: Thing;", i)}
	}
	return jobs
}

func echoParse(_ context.Context, path, text string) (*symbols.Outcome, error) {
	return &symbols.Outcome{
		Symbols:  []symbols.Symbol{{Name: path}},
		Keywords: map[string][]symbols.Range{text: nil},
	}, nil
}

func TestSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		max, files, want int
	}{
		{6, 10, 6},
		{6, 3, 3},
		{6, 0, 1},
		{0, 5, 1},
		{1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Size(tt.max, tt.files), "Size(%d, %d)", tt.max, tt.files)
	}
}

func TestNew_FloorsSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, New(0, echoParse).Size())
	assert.Equal(t, 4, New(4, echoParse).Size())
}

func TestRun_DeliversEveryJobOnce(t *testing.T) {
	t.Parallel()
	jobs := makeJobs(50)
	seen := make(map[string]int)
	stats, err := New(6, echoParse).Run(context.Background(), jobs, func(c Completion) {
		require.NoError(t, c.Err)
		seen[c.Path]++
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Queued: 50, Completed: 50}, stats)
	assert.Len(t, seen, 50)
	for p, n := range seen {
		assert.Equal(t, 1, n, p)
	}
}

func TestRun_EmptyJobs(t *testing.T) {
	t.Parallel()
	called := false
	stats, err := New(3, echoParse).Run(context.Background(), nil, func(Completion) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, Stats{}, stats)
}

func TestRun_RespectsConcurrencyBound(t *testing.T) {
	t.Parallel()
	var active, peak atomic.Int32
	parse := func(ctx context.Context, path, text string) (*symbols.Outcome, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return &symbols.Outcome{}, nil
	}
	_, err := New(3, parse).Run(context.Background(), makeJobs(30), func(Completion) {})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_ParseErrorDoesNotStopSiblings(t *testing.T) {
	t.Parallel()
	boom := errors.New("syntax error")
	parse := func(ctx context.Context, path, text string) (*symbols.Outcome, error) {
		if path == "/game/file3.t" {
			return nil, boom
		}
		return echoParse(ctx, path, text)
	}

	var completed []int
	var failed []string
	stats, err := New(4, parse).Run(context.Background(), makeJobs(10), func(c Completion) {
		completed = append(completed, len(completed)+1)
		if c.Err != nil {
			failed = append(failed, c.Path)
			assert.Nil(t, c.Outcome)
			var pje *ParseJobError
			require.ErrorAs(t, c.Err, &pje)
			assert.Equal(t, "/game/file3.t", pje.Path)
			assert.ErrorIs(t, c.Err, boom)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/game/file3.t"}, failed)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, completed)
	assert.Equal(t, Stats{Queued: 10, Completed: 10, Failed: 1}, stats)
}

func TestRun_ParsePanicBecomesJobError(t *testing.T) {
	t.Parallel()
	parse := func(ctx context.Context, path, text string) (*symbols.Outcome, error) {
		if path == "/game/file0.t" {
			panic("nil map")
		}
		return echoParse(ctx, path, text)
	}
	var errs []error
	stats, err := New(2, parse).Run(context.Background(), makeJobs(4), func(c Completion) {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "panic: nil map")
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 4, stats.Completed)
}

func TestRun_NilOutcomeBecomesEmpty(t *testing.T) {
	t.Parallel()
	parse := func(context.Context, string, string) (*symbols.Outcome, error) { return nil, nil }
	_, err := New(1, parse).Run(context.Background(), makeJobs(1), func(c Completion) {
		require.NotNil(t, c.Outcome)
		assert.NoError(t, c.Err)
	})
	require.NoError(t, err)
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const total = 40
	var delivered int
	stats, err := New(2, echoParse).Run(ctx, makeJobs(total), func(c Completion) {
		delivered++
		if delivered == 5 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, stats.Cancelled)
	assert.Less(t, stats.Queued, total)
	assert.Equal(t, stats.Queued, stats.Completed, "every dispatched job drains")
	assert.Equal(t, delivered, stats.Completed)
}

func TestRun_CancellationDoesNotInterruptInFlightJobs(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	var once sync.Once
	parse := func(jobCtx context.Context, path, text string) (*symbols.Outcome, error) {
		once.Do(func() { close(started) })
		time.Sleep(20 * time.Millisecond)
		if jobCtx.Err() != nil {
			return nil, jobCtx.Err()
		}
		return &symbols.Outcome{}, nil
	}
	go func() {
		<-started
		cancel()
	}()

	var failures int
	stats, err := New(1, parse).Run(ctx, makeJobs(10), func(c Completion) {
		if c.Err != nil {
			failures++
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, failures)
	assert.GreaterOrEqual(t, stats.Completed, 1)
	assert.Less(t, stats.Completed, 10)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := New(4, echoParse).Run(ctx, makeJobs(10), func(Completion) {
		t.Error("no job should be delivered")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Stats{Cancelled: true}, stats)
}

func TestRun_HandlerPanicIsPoolError(t *testing.T) {
	t.Parallel()
	calls := 0
	stats, err := New(3, echoParse).Run(context.Background(), makeJobs(20), func(c Completion) {
		calls++
		if calls == 2 {
			panic("merge failed")
		}
	})
	var pe *PoolError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "merge failed")
	assert.Equal(t, 2, calls, "handle is not called after it panics")
	assert.False(t, stats.Cancelled)
	assert.LessOrEqual(t, stats.Completed, stats.Queued)
}
