package tads3ls

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/preprocess"
	"github.com/jward/tads3ls/internal/symbols"
)

// fakeParser records every parse call and returns one object symbol named
// after the file.
type fakeParser struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	hook  func(path string)
}

func (f *fakeParser) parse(_ context.Context, path, text string) (*symbols.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(path)
	}
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), ".t")
	r := symbols.NewRange(0, 0, 0, len(name))
	return &symbols.Outcome{
		Symbols:    []symbols.Symbol{{Name: name, Kind: symbols.KindObject, Range: r, SelectionRange: r}},
		Keywords:   map[string][]symbols.Range{name: {r}},
		Properties: map[string]any{"lineCount": strings.Count(text, "\n")},
	}, nil
}

func (f *fakeParser) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type progressEvent struct {
	Path      string
	Completed int
	Total     int
	PoolSize  int
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu           sync.Mutex
	makefiles    []makefile.Variant
	preprocessed [][]string
	progress     []progressEvent
	successes    [][]string
	failures     []error
	onProgress   func(progressEvent)
}

func (r *recorder) Makefile(_ string, _ []makefile.Directive, v makefile.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.makefiles = append(r.makefiles, v)
}

func (r *recorder) Preprocessed(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preprocessed = append(r.preprocessed, paths)
}

func (r *recorder) Progress(path string, completed, total, poolSize int) {
	ev := progressEvent{Path: path, Completed: completed, Total: total, PoolSize: poolSize}
	r.mu.Lock()
	r.progress = append(r.progress, ev)
	hook := r.onProgress
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) Success(paths []string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, paths)
}

func (r *recorder) Failure(_ []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recorder) completedCounts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.progress))
	for i, ev := range r.progress {
		out[i] = ev.Completed
	}
	return out
}

// project is a small on-disk TADS project with a library outside it.
type project struct {
	root     string
	makefile string
	start    string // 10 lines
	rooms    string // 50 lines
	verbs    string // 5 lines
	libA     string
	libB     string
	texts    map[string]string
}

func lines(n int) string {
	return strings.Repeat("x = 1;\n", n)
}

func newProject(t *testing.T, libraryDir string) *project {
	t.Helper()
	root := t.TempDir()
	gameDir := filepath.Join(root, "game")
	libDir := filepath.Join(root, "tads", "lib", libraryDir)
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	require.NoError(t, os.MkdirAll(libDir, 0o755))

	p := &project{
		root:     root,
		makefile: filepath.Join(gameDir, "game.t3m"),
		start:    filepath.Join(gameDir, "start.t"),
		rooms:    filepath.Join(gameDir, "rooms.t"),
		verbs:    filepath.Join(gameDir, "verbs.t"),
		libA:     filepath.Join(libDir, "events.t"),
		libB:     filepath.Join(libDir, "action.t"),
	}
	mk := "# game\n-lib " + filepath.ToSlash(filepath.Join(libDir, libraryDir)) + "\n-source start\n-source rooms\n-source verbs\n"
	files := map[string]string{
		p.makefile: mk,
		p.start:    lines(10),
		p.rooms:    lines(50),
		p.verbs:    lines(5),
		p.libA:     lines(30),
		p.libB:     lines(20),
	}
	for path, text := range files {
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	p.texts = map[string]string{
		p.start: files[p.start],
		p.rooms: files[p.rooms],
		p.verbs: files[p.verbs],
		p.libA:  files[p.libA],
		p.libB:  files[p.libB],
	}
	return p
}

func (p *project) preprocessor() preprocess.Preprocessor {
	return preprocess.Func(func(ctx context.Context, _ string) (map[string]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(p.texts))
		for k, v := range p.texts {
			out[k] = v
		}
		return out, nil
	})
}

func TestNew_Defaults(t *testing.T) {
	e := New((&fakeParser{}).parse, preprocess.Func(nil))

	assert.Equal(t, DefaultMaxWorkers, e.maxWorkers)
	assert.True(t, e.verifyFreshness)
	assert.Empty(t, e.storageRoot)
	assert.Equal(t, StateIdle, e.State())
	assert.True(t, e.Session().FirstRun())
	require.NotNil(t, e.Symbols())
	require.NotNil(t, e.Texts())
}

func TestWithMaxWorkers_Floor(t *testing.T) {
	e := New((&fakeParser{}).parse, preprocess.Func(nil), WithMaxWorkers(0))
	assert.Equal(t, 1, e.maxWorkers)
}

func TestWithNotifier_Nil(t *testing.T) {
	e := New((&fakeParser{}).parse, preprocess.Func(nil), WithNotifier(nil))
	assert.IsType(t, NopNotifier{}, e.notifier)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "cache-seeded", StateCacheSeeded.String())
	assert.Equal(t, "finalizing", StateFinalizing.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestReset_NewSession(t *testing.T) {
	p := newProject(t, "adv3")
	e := New((&fakeParser{}).parse, p.preprocessor())

	_, err := e.Parse(context.Background(), p.makefile, nil)
	require.NoError(t, err)
	require.False(t, e.Session().FirstRun())
	require.Equal(t, p.makefile, e.Session().Makefile())

	require.NoError(t, e.Reset())
	assert.True(t, e.Session().FirstRun())
	assert.Empty(t, e.Session().Makefile())

	_, ok := e.Symbols().Symbols(p.start)
	assert.True(t, ok, "reset keeps stored symbols")
}

func TestErrors_Unwrap(t *testing.T) {
	base := errors.New("boom")

	cfg := &ConfigError{Path: "game.t3m", Err: base}
	assert.ErrorIs(t, cfg, base)
	assert.Contains(t, cfg.Error(), "game.t3m")

	pre := &PreprocessError{Makefile: "game.t3m", Err: base}
	assert.ErrorIs(t, pre, base)
	assert.Contains(t, pre.Error(), "preprocess")
}
