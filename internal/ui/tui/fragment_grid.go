package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/grid"
)

const cellGlyph = "█"

func cellStyle(c engine.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(cellColors[c])
}

// FragmentGrid paints one cell per planned fragment, colored by its latest state
type FragmentGrid struct {
	cells  []engine.Color
	layout grid.Layout
	width  int
	height int
}

// NewFragmentGrid creates an empty grid
func NewFragmentGrid() FragmentGrid {
	return FragmentGrid{}
}

// Reset replaces the cells with count pending ones. Called when a plan is ready;
// a truncated plan shrinks the grid.
func (g *FragmentGrid) Reset(count int) {
	g.cells = make([]engine.Color, count)
	g.relayout()
}

// Clear removes all cells
func (g *FragmentGrid) Clear() {
	g.cells = nil
	g.relayout()
}

// Apply recolors the cell of one fragment update
func (g *FragmentGrid) Apply(u engine.FragmentUpdate) {
	if u.Index < 0 || u.Index >= len(g.cells) {
		return
	}
	g.cells[u.Index] = u.Color
}

// Count returns the number of cells
func (g FragmentGrid) Count() int {
	return len(g.cells)
}

// Color returns the color of cell n
func (g FragmentGrid) Color(n int) engine.Color {
	if n < 0 || n >= len(g.cells) {
		return engine.ColorPending
	}
	return g.cells[n]
}

// SetSize sets the outer dimensions, border included
func (g *FragmentGrid) SetSize(w, h int) {
	g.width = w
	g.height = h
	g.relayout()
}

func (g *FragmentGrid) relayout() {
	g.layout = grid.New(len(g.cells), g.innerWidth(), g.innerHeight())
}

func (g FragmentGrid) innerWidth() int  { return max(g.width-2, 0) }
func (g FragmentGrid) innerHeight() int { return max(g.height-2, 0) }

const blank = -1

// severity ranks colors for folding; the worst fragment of a folded cell wins
func severity(c engine.Color) int {
	switch c {
	case engine.ColorAlert:
		return 4
	case engine.ColorWarning:
		return 3
	case engine.ColorSuccess:
		return 2
	case engine.ColorConfirm:
		return 1
	default:
		return 0
	}
}

// fold describes how fragments share character cells when the layout does not fit
// the canvas: the layout's columns and rows are squeezed into cols x rows cells of
// cw x ch characters each.
type fold struct {
	cols, rows int
	cw, ch     int
}

func (g FragmentGrid) fold(w, h int) fold {
	l := g.layout
	f := fold{cols: min(l.XCount, w), rows: min(l.YCount, h)}
	f.cw = w / f.cols
	f.ch = h / f.rows
	return f
}

// foldedCell returns the folded cell fragment n is drawn in
func (g FragmentGrid) foldedCell(f fold, n int) (x, y int) {
	row, col := g.layout.Position(n)
	return col * f.cols / g.layout.XCount, row * f.rows / g.layout.YCount
}

// foldColors returns the worst color of every folded cell, blank where no fragment
// landed.
func (g FragmentGrid) foldColors(f fold) [][]int {
	colors := make([][]int, f.rows)
	for y := range colors {
		colors[y] = make([]int, f.cols)
		for x := range colors[y] {
			colors[y][x] = blank
		}
	}
	for n, c := range g.cells {
		x, y := g.foldedCell(f, n)
		if cur := colors[y][x]; cur == blank || severity(c) > severity(engine.Color(cur)) {
			colors[y][x] = int(c)
		}
	}
	return colors
}

// View renders the grid. When the layout does not fit the canvas, several fragments
// share one character cell.
func (g FragmentGrid) View() string {
	w, h := g.innerWidth(), g.innerHeight()
	if w == 0 || h == 0 {
		return ""
	}

	colorAt := g.cellColorAt
	if !g.layout.Empty() && !g.layout.Fits() {
		f := g.fold(w, h)
		colors := g.foldColors(f)
		colorAt = func(x, y int) int {
			fx, fy := x/f.cw, y/f.ch
			if fy >= f.rows || fx >= f.cols {
				return blank
			}
			return colors[fy][fx]
		}
	}

	var b strings.Builder
	for y := 0; y < h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		renderRow(&b, w, func(x int) int { return colorAt(x, y) })
	}

	return GridPanelStyle.Render(b.String())
}

func (g FragmentGrid) cellColorAt(x, y int) int {
	if n := g.layout.Index(x, y); n >= 0 && !g.gutter(x, y) {
		return int(g.cells[n])
	}
	return blank
}

// renderRow writes one canvas row, batching runs of equal color into one style call
func renderRow(b *strings.Builder, w int, colorAt func(x int) int) {
	run, runColor := 0, blank
	flush := func() {
		if run == 0 {
			return
		}
		if runColor == blank {
			b.WriteString(strings.Repeat(" ", run))
		} else {
			b.WriteString(cellStyle(engine.Color(runColor)).Render(strings.Repeat(cellGlyph, run)))
		}
		run = 0
	}

	for x := 0; x < w; x++ {
		c := colorAt(x)
		if c != runColor {
			flush()
			runColor = c
		}
		run++
	}
	flush()
}

// gutter reports whether (x, y) is the separating edge of a cell large enough to
// have one.
func (g FragmentGrid) gutter(x, y int) bool {
	l := g.layout
	if l.CellW >= 3 && x%l.CellW == l.CellW-1 {
		return true
	}
	if l.CellH >= 3 && y%l.CellH == l.CellH-1 {
		return true
	}
	return false
}
