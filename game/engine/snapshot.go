package engine

import (
	"fmt"
	"math/rand/v2"
)

// Snapshot captures everything needed to rebuild a board: tokens with their
// in-flight transitions, the state machine, statistics and the random
// generator state.
type Snapshot struct {
	GridX     int        `json:"grid_x"`
	GridY     int        `json:"grid_y"`
	State     State      `json:"state"`
	Cells     [][]*Token `json:"cells"` // column-major, nil for empty
	NextID    uint64     `json:"next_id"`
	Stats     Stats      `json:"stats"`
	Pending   *Position  `json:"pending,omitempty"`
	SwapA     Position   `json:"swap_a"`
	SwapB     Position   `json:"swap_b"`
	Reverting bool       `json:"reverting,omitempty"`
	Chain     int        `json:"chain,omitempty"`
	Rand      []byte     `json:"rand,omitempty"`
}

// Snapshot copies the board state. Tokens in the snapshot are independent of
// the live board.
func (b *Board) Snapshot() (*Snapshot, error) {
	s := &Snapshot{
		GridX:     b.grid.Width(),
		GridY:     b.grid.Height(),
		State:     b.state,
		Cells:     make([][]*Token, b.grid.Width()),
		NextID:    b.nextID,
		Stats:     b.stats,
		SwapA:     b.swapA,
		SwapB:     b.swapB,
		Reverting: b.reverting,
		Chain:     b.chain,
	}
	if b.pending != nil {
		p := *b.pending
		s.Pending = &p
	}
	for x := range s.Cells {
		s.Cells[x] = make([]*Token, b.grid.Height())
		for y := range s.Cells[x] {
			if t := b.grid.At(x, y); t != nil {
				cp := *t
				s.Cells[x][y] = &cp
			}
		}
	}
	if b.pcg != nil {
		data, err := b.pcg.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal random state: %w", err)
		}
		s.Rand = data
	}
	return s, nil
}

// RestoreBoard rebuilds a board for config from a snapshot
func RestoreBoard(config *Config, snap *Snapshot, opts ...Option) (*Board, error) {
	b, err := newEmptyBoard(config, opts...)
	if err != nil {
		return nil, err
	}
	if err := b.Restore(snap); err != nil {
		return nil, err
	}
	return b, nil
}

// Restore replaces the board's state with the snapshot's. The board is left
// untouched when the snapshot does not fit.
func (b *Board) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if snap.GridX != b.grid.Width() || snap.GridY != b.grid.Height() || len(snap.Cells) != snap.GridX {
		return fmt.Errorf("snapshot is %dx%d, board is %dx%d", snap.GridX, snap.GridY, b.grid.Width(), b.grid.Height())
	}
	if snap.State < Idle || snap.State > Falling {
		return fmt.Errorf("snapshot has unknown state %d", int(snap.State))
	}
	if snap.Pending != nil && !b.grid.InBounds(snap.Pending.X, snap.Pending.Y) {
		return fmt.Errorf("snapshot pending selection (%d,%d) is off the board", snap.Pending.X, snap.Pending.Y)
	}

	grid := NewGrid(snap.GridX, snap.GridY)
	for x, column := range snap.Cells {
		if len(column) != snap.GridY {
			return fmt.Errorf("snapshot column %d has %d cells, want %d", x, len(column), snap.GridY)
		}
		for y, t := range column {
			if t == nil {
				continue
			}
			if t.Type < 0 || int(t.Type) >= b.config.TokenTypes {
				return fmt.Errorf("snapshot token %d has type %d outside [0,%d)", t.ID, t.Type, b.config.TokenTypes)
			}
			if t.ID > snap.NextID {
				return fmt.Errorf("snapshot token %d is above next id %d", t.ID, snap.NextID)
			}
			cp := *t
			cp.Timing = b.timing
			grid.Place(x, y, &cp)
		}
	}
	if err := checkBoard(grid, snap.State); err != nil {
		return fmt.Errorf("snapshot is inconsistent: %w", err)
	}

	var pcg *rand.PCG
	if len(snap.Rand) > 0 {
		pcg = &rand.PCG{}
		if err := pcg.UnmarshalBinary(snap.Rand); err != nil {
			return fmt.Errorf("failed to restore random state: %w", err)
		}
	}

	b.grid = grid
	b.state = snap.State
	b.nextID = snap.NextID
	b.stats = snap.Stats
	b.swapA, b.swapB = snap.SwapA, snap.SwapB
	b.reverting = snap.Reverting
	b.chain = snap.Chain
	b.pending = nil
	if snap.Pending != nil {
		p := *snap.Pending
		b.pending = &p
	}
	if pcg != nil {
		b.pcg = pcg
		b.rng = rand.New(pcg)
	}
	return nil
}
