// Package makefile reads TADS 3 project build files (.t3m) and decides which
// standard library flavor the project is built against.
package makefile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Directive is one "key value" line of a build file, e.g. {"-lib", "adv3/adv3"}.
type Directive struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Variant identifies the standard library a project links against.
type Variant int

const (
	// VariantAdv3 is the classic adv3 library (the default).
	VariantAdv3 Variant = iota
	// VariantAdv3Lite is the adv3Lite library.
	VariantAdv3Lite
)

// String returns the library name, which is also the cache directory name.
func (v Variant) String() string {
	switch v {
	case VariantAdv3Lite:
		return "adv3Lite"
	default:
		return "adv3"
	}
}

// ParseVariant maps a library name back to its Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "adv3":
		return VariantAdv3, nil
	case "adv3lite":
		return VariantAdv3Lite, nil
	default:
		return VariantAdv3, fmt.Errorf("unknown library variant %q", s)
	}
}

var adv3LiteValue = regexp.MustCompile(`(^|/)adv3[Ll]ite/`)

// Analyze reads the build file at path and returns its directives in file
// order. Blank lines and '#' comments are skipped, as are keys without a value.
func Analyze(path string) ([]Directive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read makefile: %w", err)
	}
	directives, err := ParseDirectives(data)
	if err != nil {
		return nil, fmt.Errorf("read makefile: %w", err)
	}
	return directives, nil
}

// ParseDirectives splits build file contents into directives. Each line is
// split on its first run of whitespace. A line longer than 1 MiB is an
// error.
func ParseDirectives(data []byte) ([]Directive, error) {
	var out []Directive
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexFunc(line, unicode.IsSpace)
		if idx < 0 {
			continue
		}
		key := line[:idx]
		value := strings.TrimSpace(line[idx:])
		if value == "" {
			continue
		}
		out = append(out, Directive{Key: key, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DetectVariant returns VariantAdv3Lite if any directive value points into an
// adv3Lite directory, and VariantAdv3 otherwise. First match wins.
func DetectVariant(directives []Directive) Variant {
	for _, d := range directives {
		if adv3LiteValue.MatchString(filepath.ToSlash(d.Value)) {
			return VariantAdv3Lite
		}
	}
	return VariantAdv3
}

// Values returns the values of every directive with the given key, in order.
func Values(directives []Directive, key string) []string {
	var out []string
	for _, d := range directives {
		if d.Key == key {
			out = append(out, d.Value)
		}
	}
	return out
}
