package engine

import "fmt"

// Grid is a column-major array of token slots. cells[x][y] holds the token at
// column x, row y; nil means empty. Row 0 is the bottom.
type Grid struct {
	width  int
	height int
	cells  [][]*Token
}

// NewGrid creates an empty width x height grid
func NewGrid(width, height int) *Grid {
	cells := make([][]*Token, width)
	for x := range cells {
		cells[x] = make([]*Token, height)
	}
	return &Grid{width: width, height: height, cells: cells}
}

// Width returns the number of columns
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) lies on the grid
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the token at (x, y), or nil for empty and out-of-range cells
func (g *Grid) At(x, y int) *Token {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.cells[x][y]
}

// Set places t at (x, y) without touching its coordinates
func (g *Grid) Set(x, y int, t *Token) {
	if g.InBounds(x, y) {
		g.cells[x][y] = t
	}
}

// Place stores t at (x, y) and updates its logical coordinates
func (g *Grid) Place(x, y int, t *Token) {
	if !g.InBounds(x, y) {
		return
	}
	g.cells[x][y] = t
	if t != nil {
		t.X, t.Y = x, y
	}
}

// Swap exchanges two slots and keeps token coordinates in sync
func (g *Grid) Swap(ax, ay, bx, by int) {
	a, b := g.At(ax, ay), g.At(bx, by)
	g.Place(ax, ay, b)
	g.Place(bx, by, a)
}

// Index flattens (x, y) into a single int key
func (g *Grid) Index(x, y int) int {
	return x*g.height + y
}

// Each calls fn for every cell, column by column from the bottom up
func (g *Grid) Each(fn func(x, y int, t *Token)) {
	for x := 0; x < g.width; x++ {
		for y := 0; y < g.height; y++ {
			fn(x, y, g.cells[x][y])
		}
	}
}

// Count returns the number of occupied cells
func (g *Grid) Count() int {
	n := 0
	g.Each(func(_, _ int, t *Token) {
		if t != nil {
			n++
		}
	})
	return n
}

// CountColumn returns the number of occupied cells in column x
func (g *Grid) CountColumn(x int) int {
	if x < 0 || x >= g.width {
		return 0
	}
	n := 0
	for _, t := range g.cells[x] {
		if t != nil {
			n++
		}
	}
	return n
}

// CheckInvariants verifies every token sits where its coordinates say and no
// token occupies two cells.
func (g *Grid) CheckInvariants() error {
	seen := make(map[*Token]Position)
	ids := make(map[uint64]Position)
	var err error
	g.Each(func(x, y int, t *Token) {
		if err != nil || t == nil {
			return
		}
		if t.X != x || t.Y != y {
			err = fmt.Errorf("token %d at cell (%d,%d) reports (%d,%d)", t.ID, x, y, t.X, t.Y)
			return
		}
		if prev, dup := seen[t]; dup {
			err = fmt.Errorf("token %d occupies both (%d,%d) and (%d,%d)", t.ID, prev.X, prev.Y, x, y)
			return
		}
		if prev, dup := ids[t.ID]; dup {
			err = fmt.Errorf("token id %d used at both (%d,%d) and (%d,%d)", t.ID, prev.X, prev.Y, x, y)
			return
		}
		seen[t] = Position{X: x, Y: y}
		ids[t.ID] = Position{X: x, Y: y}
		if t.Anim.Elapsed < 0 || t.Anim.Elapsed > t.Anim.Duration {
			err = fmt.Errorf("token %d elapsed %v outside [0,%v]", t.ID, t.Anim.Elapsed, t.Anim.Duration)
		}
	})
	return err
}
