package engine

import (
	"fmt"
	"sort"
	"strings"
)

// TokenView is the read-only shape of a token handed to presentation layers
type TokenView struct {
	ID         uint64         `json:"id"`
	Type       TokenType      `json:"type"`
	X          int            `json:"x"`
	Y          int            `json:"y"`
	Transition TransitionKind `json:"transition"`
	Progress   float64        `json:"progress"`
	Value      Vec2           `json:"value"`
}

// BoardView is a serialisable picture of a board at one instant
type BoardView struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	State    State         `json:"state"`
	Mode     Mode          `json:"mode"`
	Stats    Stats         `json:"stats"`
	Pending  *Position     `json:"pending,omitempty"`
	Cells    [][]TokenView `json:"cells"` // column-major; Type is -1 for empty
	Rows     []string      `json:"rows"`
	Playable bool          `json:"playable"`
}

// View renders the board for API and websocket consumers
func (b *Board) View() *BoardView {
	v := &BoardView{
		Width:    b.grid.Width(),
		Height:   b.grid.Height(),
		State:    b.state,
		Mode:     b.config.Mode,
		Stats:    b.stats,
		Cells:    make([][]TokenView, b.grid.Width()),
		Rows:     RenderRows(b.grid),
		Playable: b.state == Idle && b.HasPlayableGroup(),
	}
	if p, ok := b.Pending(); ok {
		v.Pending = &p
	}
	for x := range v.Cells {
		v.Cells[x] = make([]TokenView, b.grid.Height())
		for y := range v.Cells[x] {
			t := b.grid.At(x, y)
			if t == nil {
				v.Cells[x][y] = TokenView{Type: -1, X: x, Y: y}
				continue
			}
			v.Cells[x][y] = TokenView{
				ID:         t.ID,
				Type:       t.Type,
				X:          t.X,
				Y:          t.Y,
				Transition: t.Anim.Kind,
				Progress:   t.Anim.Ratio(),
				Value:      t.Value(),
			}
		}
	}
	return v
}

// TypeGlyph maps a token type to a single printable character
func TypeGlyph(t TokenType) byte {
	const glyphs = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if t < 0 || int(t) >= len(glyphs) {
		return '?'
	}
	return glyphs[t]
}

// RenderRows draws the grid top row first, one glyph per cell, '.' for empty
// cells and lower case for tokens being removed.
func RenderRows(g *Grid) []string {
	rows := make([]string, 0, g.Height())
	for y := g.Height() - 1; y >= 0; y-- {
		var row strings.Builder
		for x := 0; x < g.Width(); x++ {
			t := g.At(x, y)
			switch {
			case t == nil:
				row.WriteByte('.')
			case t.IsRemoving():
				row.WriteByte(TypeGlyph(t.Type) + ('a' - 'A'))
			default:
				row.WriteByte(TypeGlyph(t.Type))
			}
		}
		rows = append(rows, row.String())
	}
	return rows
}

// GridFromRows builds a settled grid from rows written top row first using
// TypeGlyph letters; '.' leaves a cell empty. Token ids are assigned in
// column order starting at 1. It is meant for tests and fixtures.
func GridFromRows(rows []string, timing Timing) *Grid {
	height := len(rows)
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	g := NewGrid(width, height)
	var id uint64
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			row := rows[height-1-y]
			if x >= len(row) || row[x] == '.' {
				continue
			}
			id++
			g.Place(x, y, NewToken(id, TokenType(row[x]-'A'), x, y, timing))
		}
	}
	return g
}

// NewBoardFromRows builds a board whose initial layout is given by rows
// instead of random fill. Later refills still use the board's randomness.
func NewBoardFromRows(config *Config, rows []string, opts ...Option) (*Board, error) {
	b, err := newEmptyBoard(config, opts...)
	if err != nil {
		return nil, err
	}
	g := GridFromRows(rows, b.timing)
	if g.Width() != config.GridX || g.Height() != config.GridY {
		return nil, &ConfigError{Field: "layout", Reason: "does not match grid_x/grid_y"}
	}
	var bad *Token
	g.Each(func(_, _ int, t *Token) {
		if t == nil {
			return
		}
		if t.Type < 0 || int(t.Type) >= config.TokenTypes {
			bad = t
		}
		if t.ID > b.nextID {
			b.nextID = t.ID
		}
	})
	if bad != nil {
		return nil, &ConfigError{Field: "layout", Reason: fmt.Sprintf("cell (%d,%d) uses a type outside token_types", bad.X, bad.Y)}
	}
	b.grid = g
	return b, nil
}

// GroupSizes returns the board's group size histogram
func (b *Board) GroupSizes() map[int]int {
	return GroupSizes(b.grid)
}

// LargestGroups returns up to n of the board's groups of at least minSize
func (b *Board) LargestGroups(minSize, n int) []MatchSet {
	return LargestGroups(b.grid, minSize, n)
}

// Rows renders the board, top row first
func (b *Board) Rows() []string {
	return RenderRows(b.grid)
}

// CountType counts the tokens of one type
func CountType(g *Grid, tokenType TokenType) int {
	count := 0
	g.Each(func(_, _ int, t *Token) {
		if t != nil && t.Type == tokenType {
			count++
		}
	})
	return count
}

// GroupSizes returns a histogram of group sizes over the whole grid
func GroupSizes(g *Grid) map[int]int {
	finder := NewMatchFinder(g.Width() * g.Height())
	hist := make(map[int]int)
	for _, group := range finder.FindAllGroups(g, 1) {
		hist[len(group)]++
	}
	return hist
}

// LargestGroups returns up to n groups of at least minSize, biggest first
func LargestGroups(g *Grid, minSize, n int) []MatchSet {
	finder := NewMatchFinder(g.Width() * g.Height())
	groups := finder.FindAllGroups(g, minSize)
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i]) > len(groups[j])
	})
	if n >= 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// PlayableSwaps lists adjacent pairs whose swap would complete a group of at
// least MatchSize, up to limit pairs when limit is positive. Swaps are tried
// on a scratch copy of the slots, so the board itself is never written.
func (b *Board) PlayableSwaps(limit int) []MatchSet {
	w, h := b.grid.Width(), b.grid.Height()
	scratch := NewGrid(w, h)
	b.grid.Each(func(x, y int, t *Token) {
		scratch.Set(x, y, t)
	})
	finder := NewMatchFinder(w * h)

	var out []MatchSet
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for _, d := range [2]Position{{X: 1}, {Y: 1}} {
				nx, ny := x+d.X, y+d.Y
				a, c := scratch.At(x, y), scratch.At(nx, ny)
				if a == nil || c == nil || a.Type == c.Type {
					continue
				}
				scratch.Set(x, y, c)
				scratch.Set(nx, ny, a)
				ok := len(finder.FindGroup(scratch, x, y)) >= b.config.MatchSize ||
					len(finder.FindGroup(scratch, nx, ny)) >= b.config.MatchSize
				scratch.Set(x, y, a)
				scratch.Set(nx, ny, c)
				if !ok {
					continue
				}
				out = append(out, MatchSet{{X: x, Y: y}, {X: nx, Y: ny}})
				if limit > 0 && len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}
