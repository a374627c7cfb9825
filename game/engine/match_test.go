package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fourByFour = []string{
	"BCDB",
	"CDBC",
	"ADCD",
	"AABC",
}

func TestFindGroup(t *testing.T) {
	g := GridFromRows(fourByFour, Timing{})
	f := NewMatchFinder(16)

	group := f.FindGroup(g, 0, 0)
	assert.Equal(t, MatchSet{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 0}}, group.Sorted())

	// same group from any member
	assert.Equal(t, group.Sorted(), f.FindGroup(g, 1, 0).Sorted())

	pair := f.FindGroup(g, 1, 2)
	assert.Len(t, pair, 2)
	assert.True(t, pair.Contains(Position{X: 1, Y: 1}))

	assert.Len(t, f.FindGroup(g, 3, 3), 1)
}

func TestFindGroupEmptyAndOutOfRange(t *testing.T) {
	g := GridFromRows([]string{
		"A.",
		"AA",
	}, Timing{})
	f := NewMatchFinder(4)

	assert.Empty(t, f.FindGroup(g, 1, 1))
	assert.Empty(t, f.FindGroup(g, -1, 0))
	assert.Empty(t, f.FindGroup(g, 0, 5))
	assert.Len(t, f.FindGroup(g, 0, 0), 3)
}

func TestFindAllGroupsPartitionsCells(t *testing.T) {
	g := GridFromRows(fourByFour, Timing{})
	f := NewMatchFinder(16)

	all := f.FindAllGroups(g, 1)
	seen := make(map[Position]bool)
	total := 0
	for _, group := range all {
		for _, p := range group {
			assert.False(t, seen[p], "cell %v in two groups", p)
			seen[p] = true
		}
		total += len(group)
	}
	assert.Equal(t, 16, total)

	big := f.FindAllGroups(g, 3)
	require.Len(t, big, 1)
	assert.Len(t, big[0], 3)

	assert.Equal(t, map[int]int{1: 11, 2: 1, 3: 1}, GroupSizes(g))
}

func TestFindGroupLargeUniformGrid(t *testing.T) {
	g := NewGrid(MaxGridSize, MaxGridSize)
	var id uint64
	for x := 0; x < MaxGridSize; x++ {
		for y := 0; y < MaxGridSize; y++ {
			id++
			g.Place(x, y, NewToken(id, 0, x, y, Timing{}))
		}
	}
	f := NewMatchFinder(MaxGridSize * MaxGridSize)
	assert.Len(t, f.FindGroup(g, 17, 40), MaxGridSize*MaxGridSize)
}

// referenceGroup is a plain breadth-first flood fill used to cross-check MatchFinder
func referenceGroup(g *Grid, x, y int) map[Position]bool {
	out := make(map[Position]bool)
	start := g.At(x, y)
	if start == nil {
		return out
	}
	queue := []Position{{X: x, Y: y}}
	out[queue[0]] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range neighbours {
			q := Position{X: p.X + d.X, Y: p.Y + d.Y}
			if t := g.At(q.X, q.Y); t != nil && t.Type == start.Type && !out[q] {
				out[q] = true
				queue = append(queue, q)
			}
		}
	}
	return out
}

func TestFindGroupMatchesReference(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		r := rand.New(rand.NewPCG(seed, seed))
		w, h := 1+r.IntN(10), 1+r.IntN(10)
		g := NewGrid(w, h)
		var id uint64
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				if r.IntN(8) == 0 {
					continue
				}
				id++
				g.Place(x, y, NewToken(id, TokenType(r.IntN(3)), x, y, Timing{}))
			}
		}

		f := NewMatchFinder(w * h)
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				want := referenceGroup(g, x, y)
				got := f.FindGroup(g, x, y)
				require.Len(t, got, len(want), "seed %d cell (%d,%d)", seed, x, y)
				for _, p := range got {
					assert.True(t, want[p], "seed %d cell (%d,%d) unexpected %v", seed, x, y, p)
				}
			}
		}
	}
}

func TestLargestGroupsOrdersBySize(t *testing.T) {
	g := GridFromRows([]string{
		"AAB",
		"CAB",
		"CCC",
	}, Timing{})
	groups := LargestGroups(g, 2, -1)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 4)
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 2)

	assert.Len(t, LargestGroups(g, 2, 1), 1)
	assert.Equal(t, 4, CountType(g, 2))
}
