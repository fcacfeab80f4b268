// Package grid maps a linear fragment index onto a rectangular canvas.
//
// A Layout is a pure function of (count, width, height) and carries no other state, so
// renderers rebuild it whenever the canvas is resized or the plan shrinks.
package grid

import "math"

// Rect is a cell rectangle in canvas units.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Layout places Count cells in XCount columns and YCount rows.
type Layout struct {
	Count          int
	Width, Height  int
	XCount, YCount int
	CellW, CellH   int
}

// New computes a layout whose column/row ratio approximates width/height.
func New(count, width, height int) Layout {
	l := Layout{Count: count, Width: width, Height: height}
	if count <= 0 || width <= 0 || height <= 0 {
		return l
	}

	ratio := float64(width) / float64(height)
	l.XCount = int(math.Ceil(math.Sqrt(float64(count)) * ratio))
	if l.XCount < 1 {
		l.XCount = 1
	}
	l.YCount = (count + l.XCount - 1) / l.XCount

	l.CellW = (width + l.XCount - 1) / l.XCount
	l.CellH = (height + l.YCount - 1) / l.YCount
	return l
}

// Empty reports whether the layout has no cells.
func (l Layout) Empty() bool {
	return l.XCount == 0
}

// Fits reports whether every cell lies inside the canvas. Ceil-rounded cell sizes
// overshoot the canvas when there are more columns or rows than canvas units.
func (l Layout) Fits() bool {
	return l.XCount*l.CellW <= l.Width && l.YCount*l.CellH <= l.Height
}

// Position returns the row and column of index n.
func (l Layout) Position(n int) (row, col int) {
	row = n / l.XCount
	col = n - row*l.XCount
	return row, col
}

// Cell returns the rectangle of index n. ok is false when n is out of range.
func (l Layout) Cell(n int) (r Rect, ok bool) {
	if l.Empty() || n < 0 || n >= l.Count {
		return Rect{}, false
	}
	row, col := l.Position(n)
	return Rect{
		X:      col * l.CellW,
		Y:      row * l.CellH,
		Width:  l.CellW,
		Height: l.CellH,
	}, true
}

// Index returns the cell index under canvas point (x, y), or -1.
func (l Layout) Index(x, y int) int {
	if l.Empty() || x < 0 || y < 0 {
		return -1
	}
	col, row := x/l.CellW, y/l.CellH
	if col >= l.XCount {
		return -1
	}
	n := row*l.XCount + col
	if n >= l.Count {
		return -1
	}
	return n
}
