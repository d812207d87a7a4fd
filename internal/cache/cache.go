// Package cache persists the parse results of standard-library files between
// sessions, so a fresh server does not re-parse adv3 or adv3Lite on every start.
//
// Artifacts live under <root>/.cache/<variant>/ as two JSON files per library
// file, named after its base name:
//
//	<base>__symbols.json   array of document symbols
//	<base>__keywords.json  array of [keyword, [ranges...]] pairs
//
// A SQLite manifest next to them records which path produced each artifact and
// the digest of the text it was parsed from.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/makefile"
	"github.com/jward/tads3ls/internal/store"
	"github.com/jward/tads3ls/internal/symbols"
)

const (
	symbolsSuffix  = "__symbols.json"
	keywordsSuffix = "__keywords.json"
	manifestName   = "manifest.db"

	metaParserVersion = "parser_version"
)

// SymbolSource supplies the results to export.
type SymbolSource interface {
	Symbols(path string) ([]symbols.Symbol, bool)
	Keywords(path string) (map[string][]symbols.Range, bool)
}

// SymbolSink receives imported results.
type SymbolSink interface {
	SetSymbols(path string, syms []symbols.Symbol)
	SetKeywords(path string, kws map[string][]symbols.Range)
}

// HashSource supplies the digest of a file's current preprocessed text.
type HashSource interface {
	Hash(path string) (uint64, bool)
}

// ItemResult is the per-file outcome of an import or export. Hit means the
// file was served from (or written to) the cache.
type ItemResult struct {
	Path string
	Hit  bool
	Err  error
}

// Store reads and writes library cache artifacts for one library variant.
type Store struct {
	dir           string
	classifier    *makefile.Classifier
	manifest      *store.Store
	parserVersion string
	verify        bool
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.OrDiscard(l) }
}

// WithParserVersion records the version of the parser producing the
// artifacts. With freshness checks on, a version change invalidates the
// whole cache.
func WithParserVersion(v string) Option {
	return func(s *Store) { s.parserVersion = v }
}

// WithFreshnessCheck toggles content-hash and parser-version validation of
// cached entries. When off, any artifact found by path is trusted.
func WithFreshnessCheck(enabled bool) Option {
	return func(s *Store) { s.verify = enabled }
}

// WithClassifier overrides the library-file predicate.
func WithClassifier(c *makefile.Classifier) Option {
	return func(s *Store) {
		if c != nil {
			s.classifier = c
		}
	}
}

// Dir returns the cache directory for root and variant.
func Dir(root string, variant makefile.Variant) string {
	return filepath.Join(root, ".cache", variant.String())
}

// Open prepares the cache directory for variant under root. An empty root
// disables caching: Open returns a nil Store and touches nothing on disk.
// A manifest that cannot be opened is logged and artifacts are then trusted
// by path alone.
func Open(root string, variant makefile.Variant, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, nil
	}
	s := &Store{
		dir:        Dir(root, variant),
		classifier: makefile.NewClassifier(variant),
		verify:     true,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &CacheIOError{Op: "mkdir", Path: root, Artifact: s.dir, Err: err}
	}

	m, err := store.NewStore(filepath.Join(s.dir, manifestName))
	if err == nil {
		if err = m.Migrate(); err != nil {
			m.Close()
		}
	}
	if err != nil {
		s.logger.Warn("cache manifest unavailable, trusting artifacts by path", "dir", s.dir, "error", err)
	} else {
		s.manifest = m
	}
	s.logger.Debug("library cache ready", "dir", s.dir, "variant", variant.String())
	return s, nil
}

// Close releases the manifest.
func (s *Store) Close() error {
	if s == nil || s.manifest == nil {
		return nil
	}
	return s.manifest.Close()
}

// Dir returns the directory holding this store's artifacts.
func (s *Store) Dir() string { return s.dir }

// SymbolsPath returns the symbols artifact path for a library file.
func (s *Store) SymbolsPath(path string) string {
	return filepath.Join(s.dir, filepath.Base(path)+symbolsSuffix)
}

// KeywordsPath returns the keywords artifact path for a library file.
func (s *Store) KeywordsPath(path string) string {
	return filepath.Join(s.dir, filepath.Base(path)+keywordsSuffix)
}

// Export writes artifacts for every library file among paths whose symbols
// are present in src. Failures are recorded per item and never stop the loop.
// Artifacts are keyed by base name, so when two files share one only the last
// written is reported as a hit.
func (s *Store) Export(ctx context.Context, paths []string, src SymbolSource, hashes HashSource) []ItemResult {
	libs := s.classifier.Filter(paths)
	results := make([]ItemResult, 0, len(libs))
	written := make(map[string]int, len(libs)) // base name -> index in results
	for _, p := range libs {
		if err := ctx.Err(); err != nil {
			results = append(results, ItemResult{Path: p, Err: err})
			continue
		}
		res := s.exportOne(p, src, hashes)
		if res.Err != nil {
			s.logger.Error("caching failed", "path", p, "error", res.Err)
		}
		if res.Hit {
			base := filepath.Base(p)
			if i, ok := written[base]; ok {
				s.logger.Warn("cached artifact overwritten by file with the same name",
					"path", results[i].Path, "by", p)
				results[i].Hit = false
			}
			written[base] = len(results)
		}
		results = append(results, res)
	}

	if s.manifest != nil && s.parserVersion != "" {
		if err := s.manifest.SetMetadata(metaParserVersion, s.parserVersion); err != nil {
			s.logger.Warn("recording parser version failed", "error", err)
		}
	}
	return results
}

func (s *Store) exportOne(p string, src SymbolSource, hashes HashSource) ItemResult {
	syms, ok := src.Symbols(p)
	if !ok {
		// Never parsed (e.g. its parse job failed); nothing to cache.
		return ItemResult{Path: p}
	}
	kws, _ := src.Keywords(p)

	symData, err := encodeSymbols(syms)
	if err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "encode", Path: p, Artifact: s.SymbolsPath(p), Err: err}}
	}
	kwData, err := encodeKeywords(kws)
	if err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "encode", Path: p, Artifact: s.KeywordsPath(p), Err: err}}
	}
	if err := writeFileAtomic(s.SymbolsPath(p), symData); err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "write", Path: p, Artifact: s.SymbolsPath(p), Err: err}}
	}
	if err := writeFileAtomic(s.KeywordsPath(p), kwData); err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "write", Path: p, Artifact: s.KeywordsPath(p), Err: err}}
	}

	if s.manifest != nil {
		a := &store.Artifact{Base: filepath.Base(p), Path: p, ExportedAt: time.Now()}
		if hashes != nil {
			if h, ok := hashes.Hash(p); ok {
				a.ContentHash = formatHash(h)
			}
		}
		if err := s.manifest.PutArtifact(a); err != nil {
			s.logger.Warn("manifest update failed", "path", p, "error", err)
		}
	}
	s.logger.Debug("cached symbols exported", "path", p, "artifact", s.SymbolsPath(p))
	return ItemResult{Path: p, Hit: true}
}

// Import installs cached results for every library file among paths into dst
// and returns the set of paths it satisfied. A missing artifact is a silent
// miss; unreadable or undecodable ones are logged misses.
func (s *Store) Import(ctx context.Context, paths []string, dst SymbolSink, hashes HashSource) ([]ItemResult, map[string]bool) {
	libs := s.classifier.Filter(paths)
	results := make([]ItemResult, 0, len(libs))
	satisfied := make(map[string]bool)
	parserStale := s.parserChanged()

	for _, p := range libs {
		if ctx.Err() != nil {
			break
		}
		res := s.importOne(p, dst, hashes, parserStale)
		if res.Err != nil {
			s.logger.Error("reading cached library file failed", "path", p, "error", res.Err)
		}
		if res.Hit {
			satisfied[p] = true
		}
		results = append(results, res)
	}
	return results, satisfied
}

func (s *Store) importOne(p string, dst SymbolSink, hashes HashSource, parserStale bool) ItemResult {
	symPath, kwPath := s.SymbolsPath(p), s.KeywordsPath(p)

	symData, err := os.ReadFile(symPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ItemResult{Path: p}
		}
		return ItemResult{Path: p, Err: &CacheIOError{Op: "read", Path: p, Artifact: symPath, Err: err}}
	}
	kwData, err := os.ReadFile(kwPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ItemResult{Path: p}
		}
		return ItemResult{Path: p, Err: &CacheIOError{Op: "read", Path: p, Artifact: kwPath, Err: err}}
	}

	if reason := s.staleReason(p, hashes, parserStale); reason != "" {
		s.logger.Debug("cached entry rejected", "path", p, "reason", reason)
		return ItemResult{Path: p}
	}

	syms, err := decodeSymbols(symData)
	if err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "decode", Path: p, Artifact: symPath, Err: err}}
	}
	kws, err := decodeKeywords(kwData)
	if err != nil {
		return ItemResult{Path: p, Err: &CacheIOError{Op: "decode", Path: p, Artifact: kwPath, Err: err}}
	}

	dst.SetSymbols(p, syms)
	dst.SetKeywords(p, kws)
	s.logger.Debug("cached symbols used", "path", p)
	return ItemResult{Path: p, Hit: true}
}

// staleReason explains why a present artifact must not be used, or returns "".
// Artifacts without a manifest row are trusted by path.
func (s *Store) staleReason(p string, hashes HashSource, parserStale bool) string {
	if s.manifest == nil {
		return ""
	}
	a, err := s.manifest.ArtifactByBase(filepath.Base(p))
	if err != nil {
		s.logger.Warn("manifest lookup failed", "path", p, "error", err)
		return ""
	}
	if a == nil {
		return ""
	}
	if a.Path != p {
		return fmt.Sprintf("artifact was produced from %s", a.Path)
	}
	if !s.verify {
		return ""
	}
	if parserStale {
		return "parser version changed"
	}
	if hashes != nil && a.ContentHash != "" {
		if h, ok := hashes.Hash(p); ok && formatHash(h) != a.ContentHash {
			return "library file changed since export"
		}
	}
	return ""
}

func (s *Store) parserChanged() bool {
	if !s.verify || s.manifest == nil || s.parserVersion == "" {
		return false
	}
	stored, err := s.manifest.GetMetadata(metaParserVersion)
	if err != nil || stored == "" {
		return false
	}
	return stored != s.parserVersion
}

// Entries lists the manifest rows. Returns nil when there is no manifest.
func (s *Store) Entries() ([]*store.Artifact, error) {
	if s.manifest == nil {
		return nil, nil
	}
	return s.manifest.Artifacts()
}

// Clear removes every artifact and manifest row for this variant.
func (s *Store) Clear() error {
	for _, suffix := range []string{symbolsSuffix, keywordsSuffix} {
		matches, err := filepath.Glob(filepath.Join(s.dir, "*"+suffix))
		if err != nil {
			return fmt.Errorf("list artifacts: %w", err)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", m, err)
			}
		}
	}
	if s.manifest != nil {
		return s.manifest.Reset()
	}
	return nil
}

func formatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never see a half-written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
