package engine

import "time"

// Timing holds the animation durations a token needs. Tokens copy it at spawn
// so they never reach back into the board.
type Timing struct {
	FallPerCell time.Duration `json:"fall_per_cell"`
	Shrink      time.Duration `json:"shrink"`
	SwapPerCell time.Duration `json:"swap_per_cell"`
}

// Token is a single typed piece occupying one grid cell.
// The owning board keeps X and Y in sync with the cell the token sits in.
type Token struct {
	ID     uint64     `json:"id"`
	Type   TokenType  `json:"type"`
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Anim   Transition `json:"anim"`
	Timing Timing     `json:"-"`
}

// NewToken creates a token resting at (x, y)
func NewToken(id uint64, tokenType TokenType, x, y int, timing Timing) *Token {
	pos := Vec2{X: float64(x), Y: float64(y)}
	return &Token{
		ID:     id,
		Type:   tokenType,
		X:      x,
		Y:      y,
		Timing: timing,
		Anim:   Transition{Origin: pos, Target: pos},
	}
}

// StartMoving animates the token from one visual position to another. The
// duration scales linearly with distance.
func (t *Token) StartMoving(distance int, from, to Vec2) {
	if distance < 0 {
		distance = -distance
	}
	t.Anim.Start(TransitionMoving, from, to, t.Timing.FallPerCell*time.Duration(distance))
}

// StartSwapping is StartMoving paced by the swap speed instead of the fall speed
func (t *Token) StartSwapping(distance int, from, to Vec2) {
	if distance < 0 {
		distance = -distance
	}
	t.Anim.Start(TransitionMoving, from, to, t.Timing.SwapPerCell*time.Duration(distance))
}

// StartRemoving shrinks the token from full scale to nothing
func (t *Token) StartRemoving() {
	t.Anim.Start(TransitionShrinking, Vec2{X: 1, Y: 1}, Vec2{}, t.Timing.Shrink)
}

// IsTransitionFinished reports whether the current transition has completed
func (t *Token) IsTransitionFinished() bool {
	return t.Anim.Finished()
}

// IsMoving reports whether the token is mid-move
func (t *Token) IsMoving() bool {
	return t.Anim.Active(TransitionMoving)
}

// IsRemoving reports whether the token is shrinking or has finished shrinking
func (t *Token) IsRemoving() bool {
	return t.Anim.Kind == TransitionShrinking
}

// Advance steps the token's transition by dt
func (t *Token) Advance(dt time.Duration) {
	t.Anim.Advance(dt)
}

// Value returns the interpolated visual value: a position while moving, a
// scale while shrinking, the resting cell otherwise.
func (t *Token) Value() Vec2 {
	if t.Anim.Kind == TransitionNone {
		return t.Rest()
	}
	return t.Anim.Value()
}

// Rest returns the visual position of the token's logical cell
func (t *Token) Rest() Vec2 {
	return Vec2{X: float64(t.X), Y: float64(t.Y)}
}
