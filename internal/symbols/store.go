// Package symbols holds the per-file analysis results (symbols, keyword
// ranges and extra properties) that the protocol layer queries.
package symbols

import (
	"sort"
	"sync"
)

// Store is the shared destination for parse results, keyed by file path.
//
// During a pipeline run a single goroutine writes to it; readers may observe
// a run half-applied. The mutex only guards map access.
type Store struct {
	mu         sync.RWMutex
	symbols    map[string][]Symbol
	keywords   map[string]map[string][]Range
	properties map[string]map[string]any
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		symbols:    make(map[string][]Symbol),
		keywords:   make(map[string]map[string][]Range),
		properties: make(map[string]map[string]any),
	}
}

// Set installs all three parts of an outcome for path. Nil parts are stored
// as empty values.
func (s *Store) Set(path string, o *Outcome) {
	if o == nil {
		o = &Outcome{}
	}
	syms := o.Symbols
	if syms == nil {
		syms = []Symbol{}
	}
	kws := o.Keywords
	if kws == nil {
		kws = map[string][]Range{}
	}
	s.mu.Lock()
	s.symbols[path] = syms
	s.keywords[path] = kws
	s.properties[path] = o.Properties
	s.mu.Unlock()
}

// SetSymbols replaces the symbols for path.
func (s *Store) SetSymbols(path string, syms []Symbol) {
	s.mu.Lock()
	s.symbols[path] = syms
	s.mu.Unlock()
}

// SetKeywords replaces the keyword ranges for path.
func (s *Store) SetKeywords(path string, kws map[string][]Range) {
	s.mu.Lock()
	s.keywords[path] = kws
	s.mu.Unlock()
}

// Symbols returns the symbols stored for path.
func (s *Store) Symbols(path string) ([]Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	syms, ok := s.symbols[path]
	return syms, ok
}

// Keywords returns the keyword ranges stored for path.
func (s *Store) Keywords(path string) (map[string][]Range, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kws, ok := s.keywords[path]
	return kws, ok
}

// Properties returns the extra properties stored for path.
func (s *Store) Properties(path string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[path]
	return p, ok
}

// Paths returns every path with stored symbols, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	paths := make([]string, 0, len(s.symbols))
	for p := range s.symbols {
		paths = append(paths, p)
	}
	s.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Delete removes every entry for path.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	delete(s.symbols, path)
	delete(s.keywords, path)
	delete(s.properties, path)
	s.mu.Unlock()
}

// Location pairs a symbol with the file it was found in.
type Location struct {
	Path   string
	Symbol Symbol
}

// FindSymbol returns the first symbol named name, searching files in path
// order and each file depth-first.
func (s *Store) FindSymbol(name string) (Location, bool) {
	for _, path := range s.Paths() {
		syms, _ := s.Symbols(path)
		if sym, ok := findIn(syms, name); ok {
			return Location{Path: path, Symbol: sym}, true
		}
	}
	return Location{}, false
}

func findIn(syms []Symbol, name string) (Symbol, bool) {
	for _, sym := range syms {
		if sym.Name == name {
			return sym, true
		}
		if found, ok := findIn(sym.Children, name); ok {
			return found, true
		}
	}
	return Symbol{}, false
}

// References returns every keyword range recorded for word across all files.
func (s *Store) References(word string) []Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Location
	paths := make([]string, 0, len(s.keywords))
	for p := range s.keywords {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, r := range s.keywords[p][word] {
			out = append(out, Location{Path: p, Symbol: Symbol{Name: word, Range: r, SelectionRange: r}})
		}
	}
	return out
}
