package tads3ls

import (
	"path/filepath"
	"sort"
	"strings"
)

// OrderFiles returns paths with the files under baseDir first. Within each
// group larger files come first so the pool starts on the slowest jobs.
// Both steps are stable: equal sizes keep their input order.
func OrderFiles(paths []string, baseDir string, sizeOf func(string) int64) []string {
	var local, other []string
	for _, p := range paths {
		if isUnder(p, baseDir) {
			local = append(local, p)
		} else {
			other = append(other, p)
		}
	}
	bySize := func(s []string) {
		sizes := make(map[string]int64, len(s))
		for _, p := range s {
			sizes[p] = sizeOf(p)
		}
		sort.SliceStable(s, func(i, j int) bool { return sizes[s[i]] > sizes[s[j]] })
	}
	bySize(local)
	bySize(other)

	out := make([]string, 0, len(paths))
	out = append(out, local...)
	return append(out, other...)
}

// WorkspaceOnly drops the paths outside baseDir, keeping order.
func WorkspaceOnly(paths []string, baseDir string) []string {
	out := paths[:0:0]
	for _, p := range paths {
		if isUnder(p, baseDir) {
			out = append(out, p)
		}
	}
	return out
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
