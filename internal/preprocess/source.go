package preprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/tads3ls/internal/logging"
	"github.com/jward/tads3ls/internal/makefile"
)

// SourcePreprocessor preprocesses a project in-process. It follows
// -source and -lib directives, resolves #include through the -I search
// path, blanks every directive line and substitutes object-like macros.
// Conditional compilation is not evaluated: both branches are kept.
type SourcePreprocessor struct {
	includeDirs []string
	libraryDirs []string
	logger      *slog.Logger
}

// SourceOption configures a SourcePreprocessor.
type SourceOption func(*SourcePreprocessor)

// WithSystemInclude appends directories searched for #include after the
// makefile's -I directories.
func WithSystemInclude(dirs ...string) SourceOption {
	return func(p *SourcePreprocessor) { p.includeDirs = append(p.includeDirs, dirs...) }
}

// WithLibraryPath appends directories searched for -lib .tl files after the
// makefile's directory and its -FL directories.
func WithLibraryPath(dirs ...string) SourceOption {
	return func(p *SourcePreprocessor) { p.libraryDirs = append(p.libraryDirs, dirs...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SourceOption {
	return func(p *SourcePreprocessor) { p.logger = logging.OrDiscard(l) }
}

// NewSourcePreprocessor creates a SourcePreprocessor.
func NewSourcePreprocessor(opts ...SourceOption) *SourcePreprocessor {
	p := &SourcePreprocessor{logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type sourceFile struct {
	lines      []string
	mask       []bool
	directives []directive
}

// PreprocessAll implements Preprocessor.
func (p *SourcePreprocessor) PreprocessAll(ctx context.Context, makefilePath string) (map[string]string, error) {
	abs, err := filepath.Abs(makefilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve makefile path: %w", err)
	}
	dirs, err := makefile.Analyze(abs)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(abs)

	includeDirs := append(resolveDirs(baseDir, makefile.Values(dirs, "-I")), p.includeDirs...)
	libDirs := append([]string{baseDir}, resolveDirs(baseDir, makefile.Values(dirs, "-FL"))...)
	libDirs = append(libDirs, p.libraryDirs...)

	queue := p.rootSources(baseDir, dirs, libDirs)

	files := make(map[string]*sourceFile)
	var order []string
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := queue[0]
		queue = queue[1:]
		if _, seen := files[path]; seen {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", path, err)
		}
		lines := splitLines(string(data))
		mask := directiveMask(lines)
		found, err := scanDirectives(ctx, lines, mask)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		files[path] = &sourceFile{lines: lines, mask: mask, directives: found}
		order = append(order, path)

		for _, d := range found {
			if d.kind != kindInclude {
				continue
			}
			target, ok := resolveInclude(d, filepath.Dir(path), includeDirs)
			if !ok {
				p.logger.Warn("include not found", "file", path, "line", d.line+1, "include", d.path)
				continue
			}
			queue = append(queue, target)
		}
	}

	// Macros are recorded in discovery order; a later #define wins.
	macros := make(map[string]string)
	for _, path := range order {
		for _, d := range files[path].directives {
			if d.kind == kindDefine && d.name != "" {
				macros[d.name] = expand(d.value, macros)
			}
		}
	}

	out := make(map[string]string, len(files))
	for path, f := range files {
		rendered := make([]string, len(f.lines))
		for i, l := range f.lines {
			if !f.mask[i] {
				rendered[i] = expand(l, macros)
			}
		}
		out[path] = strings.Join(rendered, "\n")
	}
	p.logger.Debug("preprocessed project", "makefile", abs, "files", len(out), "macros", len(macros))
	return out, nil
}

// rootSources lists the files named by -source and by the libraries named
// by -lib, in makefile order.
func (p *SourcePreprocessor) rootSources(baseDir string, dirs []makefile.Directive, libDirs []string) []string {
	var out []string
	visited := make(map[string]bool)
	for _, d := range dirs {
		switch d.Key {
		case "-source":
			out = append(out, withExt(resolvePath(baseDir, d.Value), ".t"))
		case "-lib":
			lib, ok := findFile(libDirs, withExt(d.Value, ".tl"))
			if !ok {
				p.logger.Warn("library not found", "lib", d.Value)
				continue
			}
			out = append(out, p.librarySources(lib, libDirs, visited)...)
		}
	}
	return out
}

// librarySources reads a .tl library file. "source:" entries name files
// relative to the library; "library:" entries nest further libraries.
func (p *SourcePreprocessor) librarySources(lib string, libDirs []string, visited map[string]bool) []string {
	if visited[lib] {
		return nil
	}
	visited[lib] = true

	data, err := os.ReadFile(lib)
	if err != nil {
		p.logger.Warn("library unreadable", "lib", lib, "error", err)
		return nil
	}
	dir := filepath.Dir(lib)

	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "source":
			out = append(out, withExt(resolvePath(dir, value), ".t"))
		case "library":
			nested, ok := findFile(append([]string{dir}, libDirs...), withExt(value, ".tl"))
			if !ok {
				p.logger.Warn("library not found", "lib", value, "from", lib)
				continue
			}
			out = append(out, p.librarySources(nested, libDirs, visited)...)
		}
	}
	return out
}

func resolveInclude(d directive, fromDir string, includeDirs []string) (string, bool) {
	search := includeDirs
	if !d.system {
		search = append([]string{fromDir}, includeDirs...)
	}
	return findFile(search, d.path)
}

func findFile(dirs []string, name string) (string, bool) {
	if filepath.IsAbs(name) {
		if fileExists(name) {
			return filepath.Clean(name), true
		}
		return "", false
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(name))
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func resolvePath(baseDir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

func resolveDirs(baseDir string, dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = resolvePath(baseDir, d)
	}
	return out
}

func withExt(p, ext string) string {
	if filepath.Ext(p) == "" {
		return p + ext
	}
	return p
}
