package tads3ls

import (
	"log/slog"
	"sync"

	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/pool"
	"github.com/jward/tads3ls/internal/preprocess"
	"github.com/jward/tads3ls/internal/symbols"
	"github.com/jward/tads3ls/internal/textstore"
)

// DefaultMaxWorkers is the worker ceiling used when WithMaxWorkers is not
// given.
const DefaultMaxWorkers = 6

// Engine coordinates parse runs: build configuration, preprocessing, file
// ordering, the library cache and the worker pool. It owns the shared text
// and symbol stores that the protocol layer reads.
type Engine struct {
	parse   pool.ParseFunc
	pre     preprocess.Preprocessor
	analyze func(path string) ([]makefile.Directive, error)

	maxWorkers      int
	workspaceOnly   bool
	storageRoot     string // empty disables the library cache
	libraryPatterns []string
	verifyFreshness bool
	parserVersion   string
	notifier        Notifier
	logger          *slog.Logger

	texts   *textstore.Store
	symbols *symbols.Store

	mu      sync.Mutex
	running bool
	state   State
	session *Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxWorkers sets the upper bound on concurrent parse jobs. Values below
// 1 are raised to 1.
func WithMaxWorkers(n int) Option {
	return func(e *Engine) {
		e.maxWorkers = max(n, 1)
	}
}

// WithWorkspaceOnly restricts runs to files under the makefile's directory.
func WithWorkspaceOnly(enabled bool) Option {
	return func(e *Engine) {
		e.workspaceOnly = enabled
	}
}

// WithGlobalStorage sets the root of the persistent library cache. Without
// it every file is parsed on every run and nothing is written to disk.
func WithGlobalStorage(root string) Option {
	return func(e *Engine) {
		e.storageRoot = root
	}
}

// WithNotifier sets the receiver of run events.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n == nil {
			n = NopNotifier{}
		}
		e.notifier = n
	}
}

// WithLogger sets the logger shared by the engine and its components.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrDiscard(l)
	}
}

// WithLibraryPatterns adds doublestar globs that also mark library files.
func WithLibraryPatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.libraryPatterns = append(e.libraryPatterns, patterns...)
	}
}

// WithAnalyzer replaces makefile.Analyze.
func WithAnalyzer(analyze func(path string) ([]makefile.Directive, error)) Option {
	return func(e *Engine) {
		e.analyze = analyze
	}
}

// WithVerifyFreshness controls whether cached artifacts are checked against
// the current preprocessed text and parser version. Enabled by default.
func WithVerifyFreshness(enabled bool) Option {
	return func(e *Engine) {
		e.verifyFreshness = enabled
	}
}

// WithParserVersion identifies the parser that produces outcomes. Cached
// artifacts written by another version are not reused.
func WithParserVersion(v string) Option {
	return func(e *Engine) {
		e.parserVersion = v
	}
}

// New creates an Engine that parses files with parse after running pre.
func New(parse pool.ParseFunc, pre preprocess.Preprocessor, opts ...Option) *Engine {
	e := &Engine{
		parse:           parse,
		pre:             pre,
		analyze:         makefile.Analyze,
		maxWorkers:      DefaultMaxWorkers,
		verifyFreshness: true,
		notifier:        NopNotifier{},
		logger:          logging.Discard(),
		texts:           textstore.New(),
		symbols:         symbols.NewStore(),
		session:         newSession(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Symbols returns the shared symbol store.
func (e *Engine) Symbols() *symbols.Store { return e.symbols }

// Texts returns the preprocessed text of the last run.
func (e *Engine) Texts() *textstore.Store { return e.texts }

// State returns the current run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns the current session. It must not be read while a run is
// active.
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Reset starts a new session: the makefile is analyzed again and the next
// run seeds from and exports to the library cache. Stored symbols are kept.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunInProgress
	}
	e.session = newSession()
	e.logger.Info("session reset")
	return nil
}

// begin claims the engine for a run. It fails while another run holds it.
func (e *Engine) begin() (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, false
	}
	e.running = true
	return e.session, true
}

// end releases the engine and returns it to Idle.
func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.state = StateIdle
	e.mu.Unlock()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.logger.Debug("run state", "state", s.String())
}
