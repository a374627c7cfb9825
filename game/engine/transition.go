package engine

import (
	"fmt"
	"time"
)

// TransitionKind tells what a transition is animating
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionMoving
	TransitionShrinking
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionMoving:
		return "moving"
	case TransitionShrinking:
		return "shrinking"
	default:
		return "none"
	}
}

// MarshalText renders the kind by name
func (k TransitionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name
func (k *TransitionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*k = TransitionNone
	case "moving":
		*k = TransitionMoving
	case "shrinking":
		*k = TransitionShrinking
	default:
		return fmt.Errorf("unknown transition kind %q", string(text))
	}
	return nil
}

// Transition is a linear interpolation from Origin to Target over Duration.
// Elapsed always stays within [0, Duration].
type Transition struct {
	Kind     TransitionKind `json:"kind"`
	Origin   Vec2           `json:"origin"`
	Target   Vec2           `json:"target"`
	Elapsed  time.Duration  `json:"elapsed"`
	Duration time.Duration  `json:"duration"`
}

// Start resets the transition to a new origin/target pair
func (t *Transition) Start(kind TransitionKind, origin, target Vec2, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	t.Kind = kind
	t.Origin = origin
	t.Target = target
	t.Elapsed = 0
	t.Duration = duration
}

// Advance moves elapsed forward by dt, clamped to Duration. Negative dt is ignored.
func (t *Transition) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	t.Elapsed += dt
	if t.Elapsed > t.Duration || t.Elapsed < 0 {
		t.Elapsed = t.Duration
	}
}

// Finished reports whether the transition reached its duration. A zero
// transition counts as finished.
func (t *Transition) Finished() bool {
	return t.Elapsed == t.Duration
}

// Ratio returns progress in [0, 1]
func (t *Transition) Ratio() float64 {
	if t.Duration <= 0 {
		return 1
	}
	return float64(t.Elapsed) / float64(t.Duration)
}

// Value returns the interpolated value at the current progress
func (t *Transition) Value() Vec2 {
	return Lerp(t.Origin, t.Target, t.Ratio())
}

// Active reports whether the transition is of the given kind and still running
func (t *Transition) Active(kind TransitionKind) bool {
	return t.Kind == kind && !t.Finished()
}
