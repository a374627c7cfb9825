package engine

import (
	"fmt"
	"strings"
)

// TokenType identifies the kind of a token. Valid values are [0, TokenTypes).
type TokenType int

// Position represents x,y grid coordinates. y = 0 is the bottom row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Vec2 is a visual value handed to the rendering side: a position for moving
// tokens, a scale for shrinking ones.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Lerp interpolates between a and b by t.
func Lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// State is the board's current phase
type State int

const (
	Idle State = iota
	Swapping
	Matching
	Falling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Swapping:
		return "swapping"
	case Matching:
		return "matching"
	case Falling:
		return "falling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State render as its name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "idle":
		*s = Idle
	case "swapping":
		*s = Swapping
	case "matching":
		*s = Matching
	case "falling":
		*s = Falling
	default:
		return fmt.Errorf("unknown board state %q", string(text))
	}
	return nil
}

// Mode selects how player input is interpreted
type Mode string

const (
	// ModeTap removes the selected token's group when it is large enough
	ModeTap Mode = "tap"
	// ModeSwap pairs two selections into a swap of adjacent tokens
	ModeSwap Mode = "swap"
)

// NoMatchPolicy decides what happens to a swap that produces no match
type NoMatchPolicy string

const (
	PolicyRevert NoMatchPolicy = "revert"
	PolicyKeep   NoMatchPolicy = "keep"
)

const (
	DefaultMatchSize         = 3
	DefaultTokenTypes        = 5
	DefaultGridX             = 8
	DefaultGridY             = 8
	DefaultFallMillisPerCell = 100
	DefaultShrinkMillis      = 200
	DefaultSwapMillisPerCell = 150

	MinMatchSize = 2
	MaxGridSize  = 64
)
