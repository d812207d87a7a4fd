package preprocess

import "strings"

// expand replaces whole-word occurrences of object-like macros outside
// string literals and comments. Expansion is not recursive; definitions are
// expanded against earlier ones when they are recorded instead.
func expand(line string, macros map[string]string) string {
	if len(macros) == 0 {
		return line
	}
	var b strings.Builder
	var quote byte
	changed := false
	for i := 0; i < len(line); {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == '\\' && i+1 < len(line) {
				b.WriteString(line[i : i+2])
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
			i++
		case ch == '"' || ch == '\'':
			quote = ch
			b.WriteByte(ch)
			i++
		case ch == '/' && i+1 < len(line) && line[i+1] == '/':
			b.WriteString(line[i:])
			i = len(line)
		case isIdentStart(ch):
			j := i + 1
			for j < len(line) && isIdentPart(line[j]) {
				j++
			}
			word := line[i:j]
			if v, ok := macros[word]; ok {
				b.WriteString(v)
				changed = true
			} else {
				b.WriteString(word)
			}
			i = j
		case ch >= '0' && ch <= '9':
			j := i + 1
			for j < len(line) && isIdentPart(line[j]) {
				j++
			}
			b.WriteString(line[i:j])
			i = j
		default:
			b.WriteByte(ch)
			i++
		}
	}
	if !changed {
		return line
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
