package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

var (
	ErrNotAdjacent = errors.New("tokens are not orthogonal neighbours")
	ErrSwapMode    = errors.New("swaps are only available on swap-mode boards")
	ErrNotSettled  = errors.New("board did not settle")
)

// IntNSource is the slice of math/rand/v2 the board needs to pick token types
type IntNSource interface {
	IntN(n int) int
}

// Listener receives notifications meant for a rendering collaborator
type Listener interface {
	OnSpawn(spawn Spawn)
	OnDestroy(token *Token)
}

// Stats accumulates what happened on a board
type Stats struct {
	Score         int `json:"score"`
	Moves         int `json:"moves"`
	Matches       int `json:"matches"`
	TokensRemoved int `json:"tokens_removed"`
	Cascades      int `json:"cascades"`
	LongestChain  int `json:"longest_chain"`
}

// Option customises a board at construction
type Option func(*Board)

// WithSeed makes token types reproducible
func WithSeed(seed uint64) Option {
	return func(b *Board) {
		b.pcg = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
		b.rng = rand.New(b.pcg)
	}
}

// WithRand supplies a custom randomness source. Boards built this way cannot
// carry their random state through a snapshot.
func WithRand(src IntNSource) Option {
	return func(b *Board) {
		b.pcg = nil
		b.rng = src
	}
}

// WithListener registers spawn/destroy notifications
func WithListener(l Listener) Option {
	return func(b *Board) {
		b.listener = l
	}
}

// WithDebugAssertions panics when a tick leaves the grid inconsistent
func WithDebugAssertions() Option {
	return func(b *Board) {
		b.debug = true
	}
}

// Board owns the grid and drives the Idle → Matching → Falling cycle (plus
// Swapping on swap-mode boards). It is not safe for concurrent use.
type Board struct {
	config   Config
	timing   Timing
	grid     *Grid
	state    State
	finder   *MatchFinder
	resolver *CascadeResolver
	rng      IntNSource
	pcg      *rand.PCG
	listener Listener
	debug    bool
	nextID   uint64
	stats    Stats

	pending   *Position
	swapA     Position
	swapB     Position
	reverting bool
	chain     int
}

// NewBoard validates config and fills a new board with random tokens
func NewBoard(config *Config, opts ...Option) (*Board, error) {
	b, err := newEmptyBoard(config, opts...)
	if err != nil {
		return nil, err
	}
	b.fill()
	return b, nil
}

func newEmptyBoard(config *Config, opts ...Option) (*Board, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	b := &Board{
		config: *config,
		timing: config.Timing(),
		grid:   NewGrid(config.GridX, config.GridY),
		state:  Idle,
		finder: NewMatchFinder(config.GridX * config.GridY),
	}
	b.resolver = NewCascadeResolver(b.spawn)

	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		WithSeed(rand.Uint64())(b)
	}

	return b, nil
}

// fill populates every cell. Swap boards avoid starting with a ready-made
// match when the token variety allows it.
func (b *Board) fill() {
	for x := 0; x < b.grid.Width(); x++ {
		for y := 0; y < b.grid.Height(); y++ {
			t := b.spawn(x, y)
			b.grid.Place(x, y, t)
			if b.config.Mode != ModeSwap {
				continue
			}
			for attempt := 0; attempt < 4*b.config.TokenTypes; attempt++ {
				if len(b.finder.FindGroup(b.grid, x, y)) < b.config.MatchSize {
					break
				}
				t.Type = b.randomType()
			}
		}
	}
}

func (b *Board) randomType() TokenType {
	return TokenType(b.rng.IntN(b.config.TokenTypes))
}

// spawn is the board's Spawner: new id, random type, resting at (x, y)
func (b *Board) spawn(x, y int) *Token {
	b.nextID++
	return NewToken(b.nextID, b.randomType(), x, y, b.timing)
}

// Config returns a copy of the board configuration
func (b *Board) Config() Config { return b.config }

// State returns the active state
func (b *Board) State() State { return b.state }

// Stats returns accumulated statistics
func (b *Board) Stats() Stats { return b.stats }

// Width returns the number of columns
func (b *Board) Width() int { return b.grid.Width() }

// Height returns the number of rows
func (b *Board) Height() int { return b.grid.Height() }

// At returns the token at (x, y) or nil
func (b *Board) At(x, y int) *Token { return b.grid.At(x, y) }

// Tokens returns every token on the board, column by column from the bottom up
func (b *Board) Tokens() []*Token {
	tokens := make([]*Token, 0, b.grid.Count())
	b.grid.Each(func(_, _ int, t *Token) {
		if t != nil {
			tokens = append(tokens, t)
		}
	})
	return tokens
}

// Pending returns the first half of a swap selection, if any
func (b *Board) Pending() (Position, bool) {
	if b.pending == nil {
		return Position{}, false
	}
	return *b.pending, true
}

// The query methods below use their own finder rather than b.finder, so
// they write nothing on the board and may run alongside each other.

func (b *Board) queryFinder() *MatchFinder {
	return NewMatchFinder(b.grid.Width() * b.grid.Height())
}

// Group returns the connected group containing (x, y) without changing anything
func (b *Board) Group(x, y int) MatchSet {
	return b.queryFinder().FindGroup(b.grid, x, y)
}

// Groups returns every group of at least minSize tokens
func (b *Board) Groups(minSize int) []MatchSet {
	return b.queryFinder().FindAllGroups(b.grid, minSize)
}

// HasPlayableGroup reports whether any group reaches the match size
func (b *Board) HasPlayableGroup() bool {
	return len(b.queryFinder().FindAllGroups(b.grid, b.config.MatchSize)) > 0
}

// CheckInvariants reports grid corruption. Cells are only ever empty while
// removed tokens wait for the refill, so outside Matching the board is full.
func (b *Board) CheckInvariants() error {
	return checkBoard(b.grid, b.state)
}

func checkBoard(g *Grid, state State) error {
	if err := g.CheckInvariants(); err != nil {
		return err
	}
	if state != Matching {
		if n := g.Count(); n != g.Width()*g.Height() {
			return fmt.Errorf("%s board has %d of %d cells occupied", state, n, g.Width()*g.Height())
		}
	}
	return nil
}

func (b *Board) checkRange(x, y int) error {
	if b.grid.InBounds(x, y) {
		return nil
	}
	if b.config.StrictBounds {
		return fmt.Errorf("%w: (%d,%d) on a %dx%d board", ErrOutOfRange, x, y, b.grid.Width(), b.grid.Height())
	}
	return errOutOfRangeIgnored
}

// errOutOfRangeIgnored marks an out-of-range input that is silently dropped
var errOutOfRangeIgnored = errors.New("out of range, ignored")

// Select reports that the token at (x, y) was activated. Outside Idle, on an
// empty cell, or out of range on a lenient board it does nothing.
func (b *Board) Select(x, y int) error {
	if err := b.checkRange(x, y); err != nil {
		if errors.Is(err, errOutOfRangeIgnored) {
			return nil
		}
		return err
	}
	if b.state != Idle || b.grid.At(x, y) == nil {
		return nil
	}

	if b.config.Mode == ModeSwap {
		return b.selectForSwap(x, y)
	}

	group := b.finder.FindGroup(b.grid, x, y)
	if len(group) < b.config.MatchSize {
		return nil
	}
	b.stats.Moves++
	b.chain = 0
	b.remove([]MatchSet{group})
	b.state = Matching
	return nil
}

func (b *Board) selectForSwap(x, y int) error {
	p := Position{X: x, Y: y}
	if b.pending == nil {
		b.pending = &p
		return nil
	}
	first := *b.pending
	switch {
	case first == p:
		b.pending = nil
		return nil
	case !adjacent(first, p):
		b.pending = &p
		return nil
	}
	b.pending = nil
	return b.Swap(first.X, first.Y, x, y)
}

// Swap exchanges two orthogonally adjacent tokens. The logical swap is
// immediate; the board then animates it in the Swapping state.
func (b *Board) Swap(ax, ay, bx, by int) error {
	if b.config.Mode != ModeSwap {
		return ErrSwapMode
	}
	for _, p := range [2]Position{{X: ax, Y: ay}, {X: bx, Y: by}} {
		if err := b.checkRange(p.X, p.Y); err != nil {
			if errors.Is(err, errOutOfRangeIgnored) {
				return nil
			}
			return err
		}
	}
	if b.state != Idle {
		return nil
	}
	a, c := Position{X: ax, Y: ay}, Position{X: bx, Y: by}
	if !adjacent(a, c) {
		return fmt.Errorf("%w: (%d,%d) and (%d,%d)", ErrNotAdjacent, ax, ay, bx, by)
	}
	if b.grid.At(ax, ay) == nil || b.grid.At(bx, by) == nil {
		return nil
	}

	b.pending = nil
	b.stats.Moves++
	b.chain = 0
	b.swapA, b.swapB = a, c
	b.reverting = false
	b.animateSwap(a, c)
	b.state = Swapping
	return nil
}

// animateSwap exchanges slots and starts both tokens moving to their new cells
func (b *Board) animateSwap(a, c Position) {
	ta, tc := b.grid.At(a.X, a.Y), b.grid.At(c.X, c.Y)
	fromA, fromC := ta.Rest(), tc.Rest()
	b.grid.Swap(a.X, a.Y, c.X, c.Y)
	ta.StartSwapping(1, fromA, ta.Rest())
	tc.StartSwapping(1, fromC, tc.Rest())
}

func adjacent(a, b Position) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

// remove starts the removal transition for every token in groups and scores them
func (b *Board) remove(groups []MatchSet) {
	for _, group := range groups {
		n := len(group)
		for _, p := range group {
			b.grid.At(p.X, p.Y).StartRemoving()
		}
		b.stats.Matches++
		b.stats.TokensRemoved += n
		b.stats.Score += n * (n - b.config.MatchSize + 1) * (b.chain + 1)
	}
	if b.chain+1 > b.stats.LongestChain {
		b.stats.LongestChain = b.chain + 1
	}
}

// Tick advances every transition by dt and then lets the current state
// decide whether the board moves on.
func (b *Board) Tick(dt time.Duration) error {
	if dt < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDelta, dt)
	}

	b.grid.Each(func(_, _ int, t *Token) {
		if t != nil {
			t.Advance(dt)
		}
	})

	switch b.state {
	case Swapping:
		b.tickSwapping()
	case Matching:
		b.tickMatching()
	case Falling:
		b.tickFalling()
	}

	if b.debug {
		if err := b.CheckInvariants(); err != nil {
			panic(fmt.Sprintf("board invariant violated after tick in state %s: %v", b.state, err))
		}
	}
	return nil
}

func (b *Board) anyMoving() bool {
	moving := false
	b.grid.Each(func(_, _ int, t *Token) {
		if t != nil && t.IsMoving() {
			moving = true
		}
	})
	return moving
}

func (b *Board) tickSwapping() {
	if b.anyMoving() {
		return
	}
	if b.reverting {
		b.reverting = false
		b.state = Idle
		return
	}

	if groups := b.finder.FindAllGroups(b.grid, b.config.MatchSize); len(groups) > 0 {
		b.remove(groups)
		b.state = Matching
		return
	}

	if b.config.NoMatchPolicy == PolicyRevert {
		b.animateSwap(b.swapA, b.swapB)
		b.reverting = true
		return
	}
	b.state = Idle
}

func (b *Board) tickMatching() {
	shrinking := false
	b.grid.Each(func(x, y int, t *Token) {
		if t == nil || !t.IsRemoving() {
			return
		}
		if !t.IsTransitionFinished() {
			shrinking = true
			return
		}
		b.grid.Set(x, y, nil)
		if b.listener != nil {
			b.listener.OnDestroy(t)
		}
	})
	if shrinking {
		return
	}

	spawns := b.resolver.Resolve(b.grid)
	if b.listener != nil {
		for _, s := range spawns {
			b.listener.OnSpawn(s)
		}
	}
	b.stats.Cascades++
	b.state = Falling
}

func (b *Board) tickFalling() {
	if b.anyMoving() {
		return
	}
	if b.config.ChainReactions {
		if groups := b.finder.FindAllGroups(b.grid, b.config.MatchSize); len(groups) > 0 {
			b.chain++
			b.remove(groups)
			b.state = Matching
			return
		}
	}
	b.state = Idle
}

// Settle ticks with a fixed step until the board is idle. It gives up after
// maxTicks and reports how many ticks ran.
func (b *Board) Settle(step time.Duration, maxTicks int) (int, error) {
	if step <= 0 {
		step = time.Millisecond
	}
	ticks := 0
	for b.state != Idle {
		if ticks >= maxTicks {
			return ticks, fmt.Errorf("%w after %d ticks (state %s)", ErrNotSettled, ticks, b.state)
		}
		if err := b.Tick(step); err != nil {
			return ticks, err
		}
		ticks++
	}
	return ticks, nil
}
