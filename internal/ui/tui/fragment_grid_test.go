package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentGridApply(t *testing.T) {
	g := NewFragmentGrid()
	g.Reset(4)
	require.Equal(t, 4, g.Count())

	g.Apply(engine.FragmentUpdate{Index: 1, Color: engine.ColorSuccess})
	g.Apply(engine.FragmentUpdate{Index: 1, Color: engine.ColorConfirm})
	g.Apply(engine.FragmentUpdate{Index: 3, Color: engine.ColorAlert})
	g.Apply(engine.FragmentUpdate{Index: 9, Color: engine.ColorWarning}) // ignored

	assert.Equal(t, engine.ColorPending, g.Color(0))
	assert.Equal(t, engine.ColorConfirm, g.Color(1))
	assert.Equal(t, engine.ColorAlert, g.Color(3))
	assert.Equal(t, engine.ColorPending, g.Color(9))
}

func TestFragmentGridShrinksOnReset(t *testing.T) {
	g := NewFragmentGrid()
	g.SetSize(42, 12)
	g.Reset(100)
	before := g.layout

	g.Reset(3)
	assert.Equal(t, 3, g.layout.Count)
	assert.NotEqual(t, before.XCount, g.layout.XCount)
}

func TestFragmentGridView(t *testing.T) {
	g := NewFragmentGrid()
	assert.Empty(t, g.View(), "no canvas")

	g.SetSize(22, 12)
	g.Reset(10)
	for i := 0; i < 10; i++ {
		g.Apply(engine.FragmentUpdate{Index: i, Color: engine.ColorConfirm})
	}

	view := g.View()
	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 12)
	for _, line := range lines {
		assert.Equal(t, 22, lipgloss.Width(line))
	}
	assert.Contains(t, view, cellGlyph)
}

func TestFragmentGridGutter(t *testing.T) {
	g := NewFragmentGrid()
	g.SetSize(22, 12) // 20x10 canvas
	g.Reset(10)       // 7 columns of 3, 2 rows of 5

	require.Equal(t, 3, g.layout.CellW)
	require.Equal(t, 5, g.layout.CellH)
	assert.False(t, g.gutter(0, 0))
	assert.True(t, g.gutter(2, 0))
	assert.True(t, g.gutter(0, 4))
}

func TestFragmentGridFoldsOverflow(t *testing.T) {
	g := NewFragmentGrid()
	g.SetSize(82, 22) // 80x20 canvas
	g.Reset(10000)
	require.False(t, g.layout.Fits())

	f := g.fold(80, 20)
	assert.LessOrEqual(t, f.cols*f.cw, 80)
	assert.LessOrEqual(t, f.rows*f.ch, 20)

	// every fragment is drawn in some cell inside the canvas
	for n := 0; n < g.Count(); n++ {
		x, y := g.foldedCell(f, n)
		require.True(t, x >= 0 && x < f.cols && y >= 0 && y < f.rows, "fragment %d at %d,%d", n, x, y)
	}

	last := g.Count() - 1
	g.Apply(engine.FragmentUpdate{Index: last, Color: engine.ColorAlert})
	g.Apply(engine.FragmentUpdate{Index: last - 1, Color: engine.ColorConfirm})
	x, y := g.foldedCell(f, last)
	assert.Equal(t, int(engine.ColorAlert), g.foldColors(f)[y][x])

	lines := strings.Split(g.View(), "\n")
	assert.Len(t, lines, 22)
	for _, line := range lines {
		assert.Equal(t, 82, lipgloss.Width(line))
	}
}

func TestFragmentGridFoldWorstColorWins(t *testing.T) {
	g := NewFragmentGrid()
	g.SetSize(7, 5) // 5x3 canvas
	g.Reset(500)
	f := g.fold(5, 3)

	for n := 0; n < g.Count(); n++ {
		g.Apply(engine.FragmentUpdate{Index: n, Color: engine.ColorConfirm})
	}
	g.Apply(engine.FragmentUpdate{Index: 248, Color: engine.ColorWarning})
	g.Apply(engine.FragmentUpdate{Index: 250, Color: engine.ColorSuccess})
	x, y := g.foldedCell(f, 248)
	sx, sy := g.foldedCell(f, 250)
	require.Equal(t, [2]int{x, y}, [2]int{sx, sy})

	colors := g.foldColors(f)
	assert.Equal(t, int(engine.ColorWarning), colors[y][x])
	assert.Equal(t, int(engine.ColorConfirm), colors[0][0])
}
