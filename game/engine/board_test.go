package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tapConfig(x, y int) *Config {
	c := DefaultConfig()
	c.GridX, c.GridY = x, y
	return c
}

func swapConfig(x, y int) *Config {
	c := tapConfig(x, y)
	c.Mode = ModeSwap
	return c
}

// no group of three; swapping (2,0) with (2,1) completes the bottom row
var swapFixture = []string{
	"CDBC",
	"DCAD",
	"AABC",
}

// cycleSource replays a fixed sequence of token types
type cycleSource struct {
	seq []int
	i   int
}

func (s *cycleSource) IntN(n int) int {
	v := s.seq[s.i%len(s.seq)] % n
	s.i++
	return v
}

type recorder struct {
	spawned   []Spawn
	destroyed []*Token
}

func (r *recorder) OnSpawn(s Spawn) { r.spawned = append(r.spawned, s) }
func (r *recorder) OnDestroy(tok *Token) { r.destroyed = append(r.destroyed, tok) }

func settle(t *testing.T, b *Board) {
	t.Helper()
	_, err := b.Settle(10*time.Millisecond, 10000)
	require.NoError(t, err)
	require.NoError(t, b.CheckInvariants())
}

func TestNewBoardIsFull(t *testing.T) {
	b, err := NewBoard(DefaultConfig(), WithSeed(42))
	require.NoError(t, err)

	assert.Equal(t, Idle, b.State())
	assert.Equal(t, 8, b.Width())
	assert.Equal(t, 8, b.Height())
	require.NoError(t, b.CheckInvariants())
	for x := 0; x < b.Width(); x++ {
		for y := 0; y < b.Height(); y++ {
			tok := b.At(x, y)
			require.NotNil(t, tok)
			assert.Less(t, int(tok.Type), DefaultTokenTypes)
			assert.True(t, tok.IsTransitionFinished())
		}
	}
}

func TestNewBoardRejectsInvalidConfig(t *testing.T) {
	c := tapConfig(0, 4)
	_, err := NewBoard(c)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewBoardFromRows(tapConfig(3, 3), fourByFour)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	c = tapConfig(4, 4)
	c.TokenTypes = 3
	_, err = NewBoardFromRows(c, fourByFour)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "layout", cfgErr.Field)
}

func TestSelectRemovesGroupAtThreshold(t *testing.T) {
	rec := &recorder{}
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1), WithListener(rec))
	require.NoError(t, err)

	require.NoError(t, b.Select(0, 0))
	assert.Equal(t, Matching, b.State())
	assert.Equal(t, []string{"BCDB", "CDBC", "aDCD", "aaBC"}, b.Rows())

	require.NoError(t, b.Tick(100*time.Millisecond))
	assert.Equal(t, Matching, b.State(), "still shrinking")

	require.NoError(t, b.Tick(100*time.Millisecond))
	assert.Equal(t, Falling, b.State())
	assert.Len(t, rec.destroyed, 3)
	assert.Len(t, rec.spawned, 3)
	require.NoError(t, b.CheckInvariants())

	// the longest fall is two cells at 100ms each
	require.NoError(t, b.Tick(199*time.Millisecond))
	assert.Equal(t, Falling, b.State())
	require.NoError(t, b.Tick(time.Millisecond))
	assert.Equal(t, Idle, b.State())
	require.NoError(t, b.CheckInvariants())

	assert.Equal(t, uint64(3), b.At(0, 0).ID)
	assert.Equal(t, uint64(4), b.At(0, 1).ID)
	assert.Greater(t, b.At(0, 2).ID, uint64(16))
	assert.Greater(t, b.At(0, 3).ID, uint64(16))
	assert.Equal(t, uint64(6), b.At(1, 0).ID)
	assert.Equal(t, uint64(7), b.At(1, 1).ID)
	assert.Equal(t, uint64(8), b.At(1, 2).ID)
	assert.Greater(t, b.At(1, 3).ID, uint64(16))
	for x := 2; x < 4; x++ {
		for y := 0; y < 4; y++ {
			assert.LessOrEqual(t, b.At(x, y).ID, uint64(16), "column %d untouched", x)
		}
	}

	assert.Equal(t, Stats{Score: 3, Moves: 1, Matches: 1, TokensRemoved: 3, Cascades: 1, LongestChain: 1}, b.Stats())
}

func TestSelectBelowThresholdDoesNothing(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)

	require.NoError(t, b.Select(1, 1))
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, fourByFour, b.Rows())
	assert.Equal(t, Stats{}, b.Stats())
}

func TestInputIgnoredWhileAnimating(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, b.Select(0, 0))

	rows := b.Rows()
	stats := b.Stats()
	require.NoError(t, b.Select(1, 1))
	require.NoError(t, b.Select(0, 0))
	assert.Equal(t, rows, b.Rows())
	assert.Equal(t, stats, b.Stats())

	require.NoError(t, b.Tick(200*time.Millisecond))
	require.Equal(t, Falling, b.State())
	rows = b.Rows()
	require.NoError(t, b.Select(2, 0))
	assert.Equal(t, rows, b.Rows())
	assert.Equal(t, Falling, b.State())
}

func TestSettledBoardIsStable(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)

	view := b.View()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Tick(time.Second))
	}
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, view, b.View())
}

func TestTickRejectsNegativeDelta(t *testing.T) {
	b, err := NewBoard(DefaultConfig(), WithSeed(1))
	require.NoError(t, err)
	assert.ErrorIs(t, b.Tick(-time.Millisecond), ErrNegativeDelta)
}

func TestOutOfRangeSelection(t *testing.T) {
	lenient, err := NewBoard(DefaultConfig(), WithSeed(1))
	require.NoError(t, err)
	assert.NoError(t, lenient.Select(-1, 0))
	assert.NoError(t, lenient.Select(0, 8))
	assert.Equal(t, Idle, lenient.State())

	c := DefaultConfig()
	c.StrictBounds = true
	strict, err := NewBoard(c, WithSeed(1))
	require.NoError(t, err)
	assert.ErrorIs(t, strict.Select(8, 0), ErrOutOfRange)
	assert.ErrorIs(t, strict.Select(0, -1), ErrOutOfRange)
}

func TestSettleGivesUp(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, b.Select(0, 0))

	ticks, err := b.Settle(time.Millisecond, 5)
	assert.ErrorIs(t, err, ErrNotSettled)
	assert.Equal(t, 5, ticks)
}

func TestChainReactions(t *testing.T) {
	rows := []string{
		"BDB",
		"DBD",
		"CCC",
	}
	c := tapConfig(3, 3)
	c.TokenTypes = 4
	c.ChainReactions = true

	// first refill is a row of A, the second breaks the chain
	src := &cycleSource{seq: []int{0, 0, 0, 2, 3, 2}}
	b, err := NewBoardFromRows(c, rows, WithRand(src))
	require.NoError(t, err)

	require.NoError(t, b.Select(0, 0))
	settle(t, b)

	assert.Equal(t, []string{"CDC", "BDB", "DBD"}, b.Rows())
	assert.Equal(t, Stats{Score: 9, Moves: 1, Matches: 2, TokensRemoved: 6, Cascades: 2, LongestChain: 2}, b.Stats())
}

func TestChainReactionsDisabled(t *testing.T) {
	rows := []string{
		"BDB",
		"DBD",
		"CCC",
	}
	c := tapConfig(3, 3)
	c.TokenTypes = 4

	b, err := NewBoardFromRows(c, rows, WithRand(&cycleSource{seq: []int{0}}))
	require.NoError(t, err)

	require.NoError(t, b.Select(1, 0))
	settle(t, b)

	assert.Equal(t, []string{"AAA", "BDB", "DBD"}, b.Rows())
	assert.True(t, b.HasPlayableGroup())
	assert.Equal(t, 3, b.Stats().TokensRemoved)
}

func TestSwapCreatesMatch(t *testing.T) {
	b, err := NewBoardFromRows(swapConfig(4, 3), swapFixture, WithSeed(5))
	require.NoError(t, err)

	require.NoError(t, b.Select(2, 0))
	p, ok := b.Pending()
	require.True(t, ok)
	assert.Equal(t, Position{X: 2, Y: 0}, p)
	assert.NotNil(t, b.View().Pending)

	require.NoError(t, b.Select(2, 1))
	assert.Equal(t, Swapping, b.State())
	_, ok = b.Pending()
	assert.False(t, ok)
	assert.True(t, b.At(2, 0).IsMoving())

	settle(t, b)
	assert.Equal(t, 1, b.Stats().Moves)
	assert.Equal(t, 3, b.Stats().TokensRemoved)
}

func TestSwapWithoutMatch(t *testing.T) {
	t.Run("revert", func(t *testing.T) {
		b, err := NewBoardFromRows(swapConfig(4, 3), swapFixture, WithSeed(5))
		require.NoError(t, err)

		require.NoError(t, b.Swap(0, 2, 1, 2))
		assert.Equal(t, Swapping, b.State())
		assert.Equal(t, "DCBC", b.Rows()[0])

		settle(t, b)
		assert.Equal(t, swapFixture, b.Rows())
		assert.Equal(t, 1, b.Stats().Moves)
		assert.Equal(t, 0, b.Stats().TokensRemoved)
	})

	t.Run("keep", func(t *testing.T) {
		c := swapConfig(4, 3)
		c.NoMatchPolicy = PolicyKeep
		b, err := NewBoardFromRows(c, swapFixture, WithSeed(5))
		require.NoError(t, err)

		require.NoError(t, b.Swap(0, 2, 1, 2))
		settle(t, b)
		assert.Equal(t, []string{"DCBC", "DCAD", "AABC"}, b.Rows())
	})
}

func TestSwapSelectionRules(t *testing.T) {
	b, err := NewBoardFromRows(swapConfig(4, 3), swapFixture, WithSeed(5))
	require.NoError(t, err)

	require.NoError(t, b.Select(0, 0))
	require.NoError(t, b.Select(3, 2))
	p, ok := b.Pending()
	require.True(t, ok, "a distant second pick becomes the new first pick")
	assert.Equal(t, Position{X: 3, Y: 2}, p)

	require.NoError(t, b.Select(3, 2))
	_, ok = b.Pending()
	assert.False(t, ok, "picking the same token twice clears the selection")
	assert.Equal(t, Idle, b.State())

	assert.ErrorIs(t, b.Swap(0, 0, 2, 0), ErrNotAdjacent)
	assert.ErrorIs(t, b.Swap(0, 0, 1, 1), ErrNotAdjacent)
	assert.Equal(t, 0, b.Stats().Moves)
}

func TestSwapRequiresSwapMode(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)
	assert.ErrorIs(t, b.Swap(0, 0, 1, 0), ErrSwapMode)
}

func TestSwapBoardsStartWithoutMatches(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		b, err := NewBoard(swapConfig(8, 8), WithSeed(seed))
		require.NoError(t, err)
		assert.False(t, b.HasPlayableGroup(), "seed %d", seed)
		require.NoError(t, b.CheckInvariants())
	}
}

// play removes the largest group until none is left or moves run out
func play(t *testing.T, b *Board, moves int) [][]string {
	t.Helper()
	var history [][]string
	for i := 0; i < moves; i++ {
		groups := b.LargestGroups(b.Config().MatchSize, 1)
		if len(groups) == 0 {
			break
		}
		p := groups[0].Sorted()[0]
		require.NoError(t, b.Select(p.X, p.Y))
		settle(t, b)
		for x := 0; x < b.Width(); x++ {
			require.Equal(t, b.Height(), b.grid.CountColumn(x), "column %d after move %d", x, i)
		}
		history = append(history, b.Rows())
	}
	return history
}

func TestBoardConservesTokens(t *testing.T) {
	c := DefaultConfig()
	c.ChainReactions = true
	b, err := NewBoard(c, WithSeed(3), WithDebugAssertions())
	require.NoError(t, err)

	play(t, b, 30)
	stats := b.Stats()
	assert.LessOrEqual(t, stats.Cascades, stats.Matches)
	assert.GreaterOrEqual(t, stats.TokensRemoved, stats.Matches*c.MatchSize)
}

func TestSameSeedSameGame(t *testing.T) {
	a, err := NewBoard(DefaultConfig(), WithSeed(99))
	require.NoError(t, err)
	b, err := NewBoard(DefaultConfig(), WithSeed(99))
	require.NoError(t, err)

	require.Equal(t, a.Rows(), b.Rows())
	assert.Equal(t, play(t, a, 15), play(t, b, 15))
	assert.Equal(t, a.Stats(), b.Stats())
}

func TestBoardView(t *testing.T) {
	b, err := NewBoardFromRows(tapConfig(4, 4), fourByFour, WithSeed(1))
	require.NoError(t, err)

	v := b.View()
	assert.Equal(t, 4, v.Width)
	assert.Equal(t, Idle, v.State)
	assert.Equal(t, ModeTap, v.Mode)
	assert.True(t, v.Playable)
	assert.Equal(t, fourByFour, v.Rows)
	assert.Equal(t, TokenType(0), v.Cells[0][0].Type)
	assert.Equal(t, 1.0, v.Cells[0][0].Progress)
	assert.Nil(t, v.Pending)

	require.NoError(t, b.Select(0, 0))
	require.NoError(t, b.Tick(200*time.Millisecond))
	v = b.View()
	assert.False(t, v.Playable)
	assert.Equal(t, TransitionMoving, v.Cells[0][0].Transition)
}

func TestPlayableSwaps(t *testing.T) {
	b, err := NewBoardFromRows(swapConfig(4, 3), swapFixture, WithSeed(5))
	require.NoError(t, err)

	swaps := b.PlayableSwaps(0)
	require.NotEmpty(t, swaps)
	assert.Contains(t, swaps, MatchSet{{X: 2, Y: 0}, {X: 2, Y: 1}})
	assert.Equal(t, swapFixture, b.Rows(), "trying swaps leaves the grid alone")
	require.NoError(t, b.CheckInvariants())

	assert.Len(t, b.PlayableSwaps(1), 1)
}

func TestQueriesRunConcurrently(t *testing.T) {
	b, err := NewBoardFromRows(swapConfig(4, 3), swapFixture, WithSeed(5))
	require.NoError(t, err)
	want := b.PlayableSwaps(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				if i%2 == 0 {
					assert.Equal(t, want, b.PlayableSwaps(0))
				} else {
					assert.Equal(t, swapFixture, b.View().Rows)
					b.Group(2, 0)
					b.HasPlayableGroup()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, swapFixture, b.Rows())
	for x := 0; x < b.Width(); x++ {
		for y := 0; y < b.Height(); y++ {
			tok := b.At(x, y)
			require.NotNil(t, tok)
			assert.Equal(t, Position{X: x, Y: y}, Position{X: tok.X, Y: tok.Y})
		}
	}
	require.NoError(t, b.CheckInvariants())
}
