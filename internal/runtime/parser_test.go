package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tads3ls/internal/symbols"
	"github.com/jward/tads3ls/scripts"
)

const tadsSource = `#include <adv3.h>

class Room: Thing
    roomName = 'room'
    lookAround(actor)
    {
        "You look around. ";
    }
;

startRoom: Room 'Start Room'
    "This is the start. "
    north = hallway
;

+ box: Container 'box' "A plain box.";

modify Thing
    isHeavy = nil
;

main(args)
{
    runGame(true);
}
`

func newTadsParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(NewRuntime("", WithRuntimeFS(scripts.FS)), "tads3")
	require.NoError(t, err)
	return p
}

func findSymbol(syms []symbols.Symbol, name string) *symbols.Symbol {
	for i := range syms {
		if syms[i].Name == name {
			return &syms[i]
		}
	}
	return nil
}

func TestParser_TopLevelDefinitions(t *testing.T) {
	p := newTadsParser(t)
	out, err := p.Parse(context.Background(), "/game/start.t", tadsSource)
	require.NoError(t, err)

	var names []string
	for _, s := range out.Symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Room", "startRoom", "box", "Thing", "main"}, names)

	room := findSymbol(out.Symbols, "Room")
	require.NotNil(t, room)
	assert.Equal(t, symbols.KindClass, room.Kind)
	assert.Equal(t, "Thing", room.Detail)
	assert.Equal(t, symbols.NewRange(2, 0, 8, 1), room.Range)
	assert.Equal(t, symbols.NewRange(2, 6, 2, 10), room.SelectionRange)

	start := findSymbol(out.Symbols, "startRoom")
	require.NotNil(t, start)
	assert.Equal(t, symbols.KindObject, start.Kind)
	assert.Equal(t, "Room", start.Detail)
	assert.Equal(t, 13, start.Range.End.Line)

	box := findSymbol(out.Symbols, "box")
	require.NotNil(t, box)
	assert.Equal(t, symbols.KindObject, box.Kind)
	assert.Equal(t, 15, box.Range.Start.Line)
	assert.Equal(t, 15, box.Range.End.Line)

	thing := findSymbol(out.Symbols, "Thing")
	require.NotNil(t, thing)
	assert.Equal(t, "modify", thing.Detail)

	main := findSymbol(out.Symbols, "main")
	require.NotNil(t, main)
	assert.Equal(t, symbols.KindFunction, main.Kind)
	assert.Equal(t, "(args)", main.Detail)
	assert.Equal(t, symbols.NewRange(21, 0, 24, 1), main.Range)
}

func TestParser_MembersAreChildren(t *testing.T) {
	p := newTadsParser(t)
	out, err := p.Parse(context.Background(), "/game/start.t", tadsSource)
	require.NoError(t, err)

	room := findSymbol(out.Symbols, "Room")
	require.NotNil(t, room)
	require.Len(t, room.Children, 2)

	prop := room.Children[0]
	assert.Equal(t, "roomName", prop.Name)
	assert.Equal(t, symbols.KindProperty, prop.Kind)

	method := room.Children[1]
	assert.Equal(t, "lookAround", method.Name)
	assert.Equal(t, symbols.KindMethod, method.Kind)
	assert.Equal(t, "(actor)", method.Detail)
	assert.Equal(t, symbols.NewRange(4, 4, 7, 5), method.Range)

	start := findSymbol(out.Symbols, "startRoom")
	require.NotNil(t, start)
	require.Len(t, start.Children, 1)
	assert.Equal(t, "north", start.Children[0].Name)
}

func TestParser_KeywordsAndProperties(t *testing.T) {
	p := newTadsParser(t)
	out, err := p.Parse(context.Background(), "/game/start.t", tadsSource)
	require.NoError(t, err)

	require.Len(t, out.Keywords["Room"], 2)
	assert.Equal(t, symbols.NewRange(2, 6, 2, 10), out.Keywords["Room"][0])
	assert.Equal(t, symbols.NewRange(10, 11, 10, 15), out.Keywords["Room"][1])
	assert.NotContains(t, out.Keywords, "look", "string contents are not keywords")

	assert.EqualValues(t, len(strings.Split(tadsSource, "\n")), out.Properties["lineCount"])
	assert.EqualValues(t, 2, out.Properties["objectCount"])
}

func TestParser_EmptyText(t *testing.T) {
	p := newTadsParser(t)
	out, err := p.Parse(context.Background(), "/game/empty.t", "")
	require.NoError(t, err)
	assert.NotNil(t, out.Symbols)
	assert.Empty(t, out.Symbols)
	assert.Empty(t, out.Keywords)
}

func TestParser_ConcurrentParsesDoNotShareState(t *testing.T) {
	p := newTadsParser(t)

	var wg sync.WaitGroup
	results := make([]*symbols.Outcome, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("obj%d: Thing\n;\n", i)
			results[i], errs[i] = p.Parse(context.Background(), fmt.Sprintf("/game/f%d.t", i), src)
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		require.NoError(t, errs[i])
		require.Len(t, out.Symbols, 1)
		assert.Equal(t, fmt.Sprintf("obj%d", i), out.Symbols[0].Name)
	}
}

func TestParser_ScriptFailureIsError(t *testing.T) {
	fsys := fstest.MapFS{
		"extract/bad.risor": &fstest.MapFile{Data: []byte(`assert(false, "cannot parse " + file_path)`)},
	}
	p, err := NewParser(NewRuntime("", WithRuntimeFS(fsys)), "bad")
	require.NoError(t, err)

	_, err = p.Parse(context.Background(), "/game/x.t", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract/bad.risor")
}

func TestParser_EmitHostFunctions(t *testing.T) {
	fsys := fstest.MapFS{
		"extract/probe.risor": &fstest.MapFile{Data: []byte(`
parent := emit_symbol({"name": "Outer", "kind": "class", "line": 0})
child := emit_symbol({"name": "inner", "kind": "method", "line": 1, "parent": parent})
close_symbol(child, 1)
close_symbol(parent, 2)
emit_keyword("Outer", 0, 6, 11)
set_property("flag", true)
`)},
	}
	p, err := NewParser(NewRuntime("", WithRuntimeFS(fsys)), "probe")
	require.NoError(t, err)

	out, err := p.Parse(context.Background(), "/game/x.t", "class Outer\n  inner() {}\n;")
	require.NoError(t, err)
	require.Len(t, out.Symbols, 1)
	assert.Equal(t, symbols.NewRange(0, 0, 2, 1), out.Symbols[0].Range)
	require.Len(t, out.Symbols[0].Children, 1)
	assert.Equal(t, symbols.NewRange(1, 2, 1, 12), out.Symbols[0].Children[0].Range)
	assert.Equal(t, symbols.NewRange(1, 2, 1, 7), out.Symbols[0].Children[0].SelectionRange)
	assert.Equal(t, []symbols.Range{symbols.NewRange(0, 6, 0, 11)}, out.Keywords["Outer"])
	assert.Equal(t, true, out.Properties["flag"])
}

func TestParser_VersionTracksScript(t *testing.T) {
	fsA := fstest.MapFS{"extract/x.risor": &fstest.MapFile{Data: []byte(`a := 1`)}}
	fsB := fstest.MapFS{"extract/x.risor": &fstest.MapFile{Data: []byte(`a := 2`)}}

	pa, err := NewParser(NewRuntime("", WithRuntimeFS(fsA)), "x")
	require.NoError(t, err)
	pb, err := NewParser(NewRuntime("", WithRuntimeFS(fsB)), "x")
	require.NoError(t, err)

	assert.Len(t, pa.Version(), 16)
	assert.NotEqual(t, pa.Version(), pb.Version())
}

func TestNewParser_MissingScript(t *testing.T) {
	_, err := NewParser(NewRuntime("", WithRuntimeFS(fstest.MapFS{})), "nope")
	require.Error(t, err)
}
