package tads3ls

import "github.com/jward/tads3ls/internal/makefile"

// Session is the state carried between runs: the memoized build
// configuration and whether the library cache has been used yet. It lives
// as long as the Engine, or until Reset.
type Session struct {
	makefile   string
	directives []makefile.Directive
	variant    makefile.Variant
	firstRun   bool
}

func newSession() *Session {
	return &Session{firstRun: true}
}

// Makefile returns the last analyzed build configuration path.
func (s *Session) Makefile() string { return s.makefile }

// Directives returns the directives of the last analyzed build configuration.
func (s *Session) Directives() []makefile.Directive { return s.directives }

// Variant returns the library variant in use.
func (s *Session) Variant() makefile.Variant { return s.variant }

// FirstRun reports whether the library cache is still to be seeded and
// exported.
func (s *Session) FirstRun() bool { return s.firstRun }

// resolve records a freshly analyzed build configuration.
func (s *Session) resolve(path string, directives []makefile.Directive) {
	s.makefile = path
	s.directives = directives
	s.variant = makefile.DetectVariant(directives)
}
