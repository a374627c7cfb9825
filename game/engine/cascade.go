package engine

// Spawner creates a fresh token for cell (x, y)
type Spawner func(x, y int) *Token

// Spawn records a token that entered the board during a refill
type Spawn struct {
	Token *Token `json:"token"`
	From  Vec2   `json:"from"`
	To    Vec2   `json:"to"`
}

// CascadeResolver applies gravity to a grid after removals and refills the
// gaps left at the top of each column.
type CascadeResolver struct {
	spawn Spawner
}

// NewCascadeResolver creates a resolver that fills gaps using spawn
func NewCascadeResolver(spawn Spawner) *CascadeResolver {
	return &CascadeResolver{spawn: spawn}
}

// CompactColumn drops every token in column x down over the empty cells
// beneath it, scanning bottom-up. It returns the number of empty cells, which
// now all sit at the top of the column.
func (r *CascadeResolver) CompactColumn(g *Grid, x int) int {
	gapCount := 0
	for y := 0; y < g.Height(); y++ {
		t := g.At(x, y)
		if t == nil {
			gapCount++
			continue
		}
		if gapCount == 0 {
			continue
		}
		from := t.Value()
		if !t.IsMoving() {
			from = t.Rest()
		}
		g.Set(x, y, nil)
		g.Place(x, y-gapCount, t)
		t.StartMoving(gapCount, from, t.Rest())
	}
	return gapCount
}

// RefillColumn fills the top gapCount cells of column x with new tokens that
// start gapCount cells above their slot and fall into place.
func (r *CascadeResolver) RefillColumn(g *Grid, x, gapCount int) []Spawn {
	if gapCount <= 0 {
		return nil
	}
	spawns := make([]Spawn, 0, gapCount)
	for y := g.Height() - gapCount; y < g.Height(); y++ {
		if g.At(x, y) != nil {
			continue
		}
		t := r.spawn(x, y)
		g.Place(x, y, t)
		from := Vec2{X: float64(x), Y: float64(y + gapCount)}
		to := t.Rest()
		t.StartMoving(gapCount, from, to)
		spawns = append(spawns, Spawn{Token: t, From: from, To: to})
	}
	return spawns
}

// Resolve compacts and refills every column in ascending order
func (r *CascadeResolver) Resolve(g *Grid) []Spawn {
	var spawns []Spawn
	for x := 0; x < g.Width(); x++ {
		gap := r.CompactColumn(g, x)
		spawns = append(spawns, r.RefillColumn(g, x, gap)...)
	}
	return spawns
}
