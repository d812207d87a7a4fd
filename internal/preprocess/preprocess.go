// Package preprocess produces the preprocessed text of every file a TADS 3
// project compiles, keyed by absolute path.
package preprocess

import (
	"context"
	"strings"
)

// Preprocessor turns a project makefile into per-file preprocessed texts.
// Line i of a file's text corresponds to line i of the file on disk.
type Preprocessor interface {
	PreprocessAll(ctx context.Context, makefilePath string) (map[string]string, error)
}

// Func adapts a function to the Preprocessor interface.
type Func func(ctx context.Context, makefilePath string) (map[string]string, error)

// PreprocessAll calls f.
func (f Func) PreprocessAll(ctx context.Context, makefilePath string) (map[string]string, error) {
	return f(ctx, makefilePath)
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
