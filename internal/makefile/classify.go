package makefile

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// sharedIncludePattern matches the compiler's shared header directory, which
// is library territory regardless of variant.
const sharedIncludePattern = "**/tads3/include/**"

var variantPatterns = map[Variant][]string{
	VariantAdv3:     {"**/adv3/**"},
	VariantAdv3Lite: {"**/adv3[Ll]ite/**"},
}

// Classifier decides whether a file belongs to the active standard library
// (and may therefore be served from the library cache).
type Classifier struct {
	variant  Variant
	patterns []string
}

// NewClassifier builds a Classifier for variant. Extra doublestar patterns are
// matched in addition to the built-in library locations; invalid patterns are
// ignored.
func NewClassifier(variant Variant, extra ...string) *Classifier {
	patterns := append([]string{}, variantPatterns[variant]...)
	patterns = append(patterns, sharedIncludePattern)
	for _, p := range extra {
		p = strings.TrimPrefix(filepath.ToSlash(p), "/")
		if p != "" && doublestar.ValidatePattern(p) {
			patterns = append(patterns, p)
		}
	}
	return &Classifier{variant: variant, patterns: patterns}
}

// Variant returns the variant the classifier was built for.
func (c *Classifier) Variant() Variant { return c.variant }

// IsLibrary reports whether path lies under the variant's library directory
// or the shared include directory.
func (c *Classifier) IsLibrary(path string) bool {
	name := normalize(path)
	for _, p := range c.patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Filter returns the library paths among paths, preserving order.
func (c *Classifier) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if c.IsLibrary(p) {
			out = append(out, p)
		}
	}
	return out
}

// normalize turns an absolute OS path into a slash path without volume or
// leading slash, which is what the ** patterns expect.
func normalize(path string) string {
	path = strings.TrimPrefix(path, filepath.VolumeName(path))
	return strings.TrimLeft(filepath.ToSlash(path), "/")
}
