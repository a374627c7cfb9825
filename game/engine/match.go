package engine

import (
	"sort"

	"github.com/kamstrup/intmap"
)

// MatchSet is a deduplicated set of grid coordinates forming one group
type MatchSet []Position

// Contains reports whether p is in the set
func (m MatchSet) Contains(p Position) bool {
	for _, q := range m {
		if q == p {
			return true
		}
	}
	return false
}

// Sorted returns a copy ordered by column, then row
func (m MatchSet) Sorted() MatchSet {
	out := make(MatchSet, len(m))
	copy(out, m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// neighbour offsets in exploration order: left, right, down, up
var neighbours = [4]Position{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}

// MatchFinder computes connected same-type groups with an iterative flood
// fill. Its scratch state is reset on every call, so one finder can be reused
// but must not be shared between goroutines.
type MatchFinder struct {
	visited *intmap.Map[int, struct{}]
	stack   []Position
}

// NewMatchFinder allocates a finder sized for a grid of the given cell count
func NewMatchFinder(cells int) *MatchFinder {
	if cells < 1 {
		cells = 1
	}
	return &MatchFinder{
		visited: intmap.New[int, struct{}](cells),
		stack:   make([]Position, 0, cells),
	}
}

// FindGroup returns the maximal 4-connected group of tokens sharing the type
// of the token at (x, y). Empty or out-of-range start cells yield an empty set.
func (f *MatchFinder) FindGroup(g *Grid, x, y int) MatchSet {
	f.visited.Clear()
	return f.fill(g, x, y)
}

// FindAllGroups returns every maximal group with at least minSize members.
// Each cell belongs to at most one returned group.
func (f *MatchFinder) FindAllGroups(g *Grid, minSize int) []MatchSet {
	f.visited.Clear()
	var groups []MatchSet
	g.Each(func(x, y int, t *Token) {
		if t == nil {
			return
		}
		if _, seen := f.visited.Get(g.Index(x, y)); seen {
			return
		}
		group := f.fill(g, x, y)
		if len(group) >= minSize {
			groups = append(groups, group)
		}
	})
	return groups
}

// fill floods from (x, y) without clearing visited
func (f *MatchFinder) fill(g *Grid, x, y int) MatchSet {
	start := g.At(x, y)
	if start == nil {
		return MatchSet{}
	}
	if _, seen := f.visited.Get(g.Index(x, y)); seen {
		return MatchSet{}
	}
	want := start.Type

	group := MatchSet{}
	f.stack = append(f.stack[:0], Position{X: x, Y: y})
	f.visited.Put(g.Index(x, y), struct{}{})

	for len(f.stack) > 0 {
		p := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]
		group = append(group, p)

		for _, d := range neighbours {
			nx, ny := p.X+d.X, p.Y+d.Y
			t := g.At(nx, ny)
			if t == nil || t.Type != want {
				continue
			}
			idx := g.Index(nx, ny)
			if _, seen := f.visited.Get(idx); seen {
				continue
			}
			f.visited.Put(idx, struct{}{})
			f.stack = append(f.stack, Position{X: nx, Y: ny})
		}
	}

	return group
}
