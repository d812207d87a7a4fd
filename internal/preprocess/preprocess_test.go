package preprocess

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func sampleProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"game.t3m":       "# project\n-I include\n-lib mylib\n-source start\n",
		"start.t":        "#include <adv3.h>\n#include \"defs.h\"\n\nstartRoom: Room GREETING\n;\n",
		"include/adv3.h": "#define ADV3_H\n#define MAX_SCORE 100\n",
		"defs.h":         "#define GREETING 'Hello'\n#define DOUBLE_SCORE (MAX_SCORE * 2)\n#define TWICE(x) ((x) * 2)\n",
		"mylib.tl":       "name: My Library\n# comment\nsource: lib/util\n",
		"lib/util.t":     "score = DOUBLE_SCORE; // MAX_SCORE comment\nmsg = \"MAX_SCORE\"\n",
	})
	return root
}

func TestSourcePreprocessor_FollowsSourcesLibrariesAndIncludes(t *testing.T) {
	root := sampleProject(t)
	p := NewSourcePreprocessor()

	out, err := p.PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "start.t"),
		filepath.Join(root, "include", "adv3.h"),
		filepath.Join(root, "defs.h"),
		filepath.Join(root, "lib", "util.t"),
	}
	assert.Len(t, out, len(want))
	for _, path := range want {
		assert.Contains(t, out, path)
	}
}

func TestSourcePreprocessor_BlanksDirectivesAndExpandsMacros(t *testing.T) {
	root := sampleProject(t)
	out, err := NewSourcePreprocessor().PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.NoError(t, err)

	assert.Equal(t, "\n\n\nstartRoom: Room 'Hello'\n;\n", out[filepath.Join(root, "start.t")])
	assert.Equal(t,
		"score = (100 * 2); // MAX_SCORE comment\nmsg = \"MAX_SCORE\"\n",
		out[filepath.Join(root, "lib", "util.t")])
	assert.Equal(t, "\n\n\n", out[filepath.Join(root, "defs.h")])
}

func TestSourcePreprocessor_PreservesLineCount(t *testing.T) {
	root := sampleProject(t)
	out, err := NewSourcePreprocessor().PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.NoError(t, err)

	for path, text := range out {
		orig, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, len(splitLines(string(orig))), len(splitLines(text)), path)
	}
}

func TestSourcePreprocessor_SystemIncludeAndLibraryPath(t *testing.T) {
	root := t.TempDir()
	sys := t.TempDir()
	writeFiles(t, root, map[string]string{
		"game.t3m": "-lib system\n-source main\n",
		"main.t":   "#include <tads.h>\nmain(args) { }\n",
	})
	writeFiles(t, sys, map[string]string{
		"include/tads.h": "#define TADS_H\n",
		"lib/system.tl":  "source: _main\n",
		"lib/_main.t":    "_main(args) { }\n",
	})

	p := NewSourcePreprocessor(
		WithSystemInclude(filepath.Join(sys, "include")),
		WithLibraryPath(filepath.Join(sys, "lib")),
	)
	out, err := p.PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(sys, "include", "tads.h"))
	assert.Contains(t, out, filepath.Join(sys, "lib", "_main.t"))
	assert.Contains(t, out, filepath.Join(root, "main.t"))
}

func TestSourcePreprocessor_MissingIncludeIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"game.t3m": "-source main\n",
		"main.t":   "#include \"nowhere.h\"\nx = 1\n",
	})
	out, err := NewSourcePreprocessor().PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{filepath.Join(root, "main.t"): "\nx = 1\n"}, out)
}

func TestSourcePreprocessor_MissingSourceFails(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"game.t3m": "-source gone\n"})
	_, err := NewSourcePreprocessor().PreprocessAll(context.Background(), filepath.Join(root, "game.t3m"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSourcePreprocessor_MissingMakefileFails(t *testing.T) {
	_, err := NewSourcePreprocessor().PreprocessAll(context.Background(), filepath.Join(t.TempDir(), "none.t3m"))
	require.Error(t, err)
}

func TestSourcePreprocessor_Cancelled(t *testing.T) {
	root := sampleProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSourcePreprocessor().PreprocessAll(ctx, filepath.Join(root, "game.t3m"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSplitLineMarkers(t *testing.T) {
	t.Parallel()

	output := "#line 1 \"start.t\"\nline one\n\n#line 5 \"start.t\"\nline five\n#line 1 \"/abs/other.h\"\n#define X\n"
	got := SplitLineMarkers(output, "/proj")

	assert.Equal(t, map[string]string{
		filepath.Join("/proj", "start.t"): "line one\n\n\n\nline five",
		filepath.Clean("/abs/other.h"):    "#define X\n",
	}, got)
}

func TestSplitLineMarkers_IgnoresTextBeforeFirstMarker(t *testing.T) {
	t.Parallel()
	got := SplitLineMarkers("banner\n#line 1 \"a.t\"\nx", "/p")
	assert.Equal(t, map[string]string{filepath.Join("/p", "a.t"): "x"}, got)
}

func TestCommandPreprocessor_RunsCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	mk := filepath.Join(root, "game.t3m")
	require.NoError(t, os.WriteFile(mk, []byte("-source a\n"), 0o644))

	p := NewCommandPreprocessor([]string{"sh", "-c", `test "$1" = "-f" && printf '#line 1 "a.t"\nhello\n'`, "preprocess"})
	out, err := p.PreprocessAll(context.Background(), mk)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out[filepath.Join(root, "a.t")])
}

func TestCommandPreprocessor_FailureIncludesStderr(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := NewCommandPreprocessor([]string{"sh", "-c", "echo 'bad makefile' >&2; exit 3", "preprocess"})
	_, err := p.PreprocessAll(context.Background(), filepath.Join(t.TempDir(), "game.t3m"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad makefile")
}

func TestCommandPreprocessor_NoCommand(t *testing.T) {
	_, err := NewCommandPreprocessor(nil).PreprocessAll(context.Background(), "game.t3m")
	require.Error(t, err)
}

func TestFunc(t *testing.T) {
	var pre Preprocessor = Func(func(ctx context.Context, mk string) (map[string]string, error) {
		return map[string]string{mk: "x"}, nil
	})
	out, err := pre.PreprocessAll(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"m": "x"}, out)
}
