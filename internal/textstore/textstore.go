// Package textstore holds the preprocessed text of every file in the current
// project. The preprocessor replaces the whole mapping on each pass.
package textstore

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type entry struct {
	text string
	hash uint64
}

// Store maps absolute file paths to their fully preprocessed text.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	files map[string]entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{files: make(map[string]entry)}
}

// ReplaceAll discards the current contents and installs texts.
func (s *Store) ReplaceAll(texts map[string]string) {
	files := make(map[string]entry, len(texts))
	for path, text := range texts {
		files[path] = entry{text: text, hash: xxhash.Sum64String(text)}
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
}

// Get returns the preprocessed text for path.
func (s *Store) Get(path string) (string, bool) {
	s.mu.RLock()
	e, ok := s.files[path]
	s.mu.RUnlock()
	return e.text, ok
}

// Hash returns the xxhash digest of path's preprocessed text.
func (s *Store) Hash(path string) (uint64, bool) {
	s.mu.RLock()
	e, ok := s.files[path]
	s.mu.RUnlock()
	return e.hash, ok
}

// Paths returns every known path, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	s.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Len returns the number of files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
