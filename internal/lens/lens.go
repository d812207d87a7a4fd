// Package lens derives code annotations that show how each source line was
// rewritten by the preprocessor.
package lens

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jward/tads3ls/internal/symbols"
)

// ShowCommand is the client command a lens invokes to display the full
// preprocessed text.
const ShowCommand = "tads3.showPreprocessedTextAction"

// Lens annotates one source line with its preprocessed form.
type Lens struct {
	Range        symbols.Range `json:"range"`
	Title        string        `json:"title"`
	Command      string        `json:"command"`
	Preprocessed string        `json:"preprocessed"`
}

var includeLine = regexp.MustCompile(`#\s*include`)

// Annotate compares a file's text with its preprocessed text line by line.
// Lines that vanish, stay the same, only grow, or reduce to a lone ';' get
// no lens. If the two texts no longer have matching line counts the file is
// out of sync and nothing is returned. The preprocessed text may carry one
// extra trailing line.
func Annotate(original, preprocessed string) []Lens {
	orig := splitLines(original)
	pre := splitLines(preprocessed)
	if len(orig) != len(pre) && len(orig) != len(pre)-1 {
		return nil
	}

	var out []Lens
	for row, line := range orig {
		p := pre[row]
		if strings.TrimSpace(p) == "" {
			continue
		}
		if includeLine.MatchString(line) {
			continue
		}
		// Also covers an unchanged line and an empty original line.
		if strings.Contains(p, line) {
			continue
		}
		if p == ";" {
			continue
		}
		out = append(out, Lens{
			Range:        symbols.NewRange(row, 0, row, len(line)),
			Title:        fmt.Sprintf("preprocessed to: %s", p),
			Command:      ShowCommand,
			Preprocessed: p,
		})
	}
	return out
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
