package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jward/tads3ls/internal/logging"
)

// CommandPreprocessor runs the compiler in preprocess-only mode (for example
// "t3make -P") and splits its output back into per-file texts using the
// #line markers it emits.
type CommandPreprocessor struct {
	command []string
	logger  *slog.Logger
}

// CommandOption configures a CommandPreprocessor.
type CommandOption func(*CommandPreprocessor)

// WithCommandLogger sets the logger.
func WithCommandLogger(l *slog.Logger) CommandOption {
	return func(p *CommandPreprocessor) { p.logger = logging.OrDiscard(l) }
}

// NewCommandPreprocessor creates a CommandPreprocessor. The makefile is
// passed as "-f <path>" after command's own arguments.
func NewCommandPreprocessor(command []string, opts ...CommandOption) *CommandPreprocessor {
	p := &CommandPreprocessor{command: command, logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreprocessAll implements Preprocessor.
func (p *CommandPreprocessor) PreprocessAll(ctx context.Context, makefilePath string) (map[string]string, error) {
	if len(p.command) == 0 {
		return nil, errors.New("no preprocessor command configured")
	}
	abs, err := filepath.Abs(makefilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve makefile path: %w", err)
	}
	dir := filepath.Dir(abs)

	args := append(append([]string{}, p.command[1:]...), "-f", abs)
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("running preprocessor", "command", p.command[0], "args", args)
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", p.command[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", p.command[0], err)
	}
	return SplitLineMarkers(string(out), dir), nil
}

var lineMarker = regexp.MustCompile(`^\s*#\s*line\s+(\d+)\s+"((?:[^"\\]|\\.)*)"`)

// SplitLineMarkers splits combined preprocessor output into per-file texts.
// A `#line N "file"` marker switches the current file and places the
// following line at line N of that file. Gaps are filled with blank lines.
// Relative file names resolve against baseDir.
func SplitLineMarkers(output, baseDir string) map[string]string {
	files := make(map[string][]string)
	current := ""
	next := 0
	for _, line := range splitLines(output) {
		if m := lineMarker.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				n = 1
			}
			name := strings.ReplaceAll(m[2], `\\`, `\`)
			current = resolvePath(baseDir, name)
			next = n - 1
			continue
		}
		if current == "" {
			continue
		}
		buf := files[current]
		for len(buf) < next {
			buf = append(buf, "")
		}
		if next < len(buf) {
			buf[next] = line
		} else {
			buf = append(buf, line)
		}
		files[current] = buf
		next++
	}

	out := make(map[string]string, len(files))
	for path, lines := range files {
		out[path] = strings.Join(lines, "\n")
	}
	return out
}
