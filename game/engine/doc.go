// Package engine provides the rule engine for a tile-matching puzzle.
//
// The engine package implements:
//   - A column-major grid of typed tokens
//   - Flood-fill group detection (4-connected, same type)
//   - Gravity compaction and refill after removals
//   - Linear transitions that tell the board when visuals finish
//   - The Idle/Swapping/Matching/Falling state machine
//
// Core Types:
//
// Board owns the Grid and exposes the interaction surface: Select, Swap and
// Tick. Token is a single grid occupant with a Transition. MatchFinder and
// CascadeResolver only borrow the grid for the duration of a call.
//
// Usage:
//
//	board, err := engine.NewBoard(engine.DefaultConfig(), engine.WithSeed(42))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Activate a token, then drive the animations once per frame
//	_ = board.Select(3, 0)
//	for board.State() != engine.Idle {
//		_ = board.Tick(16 * time.Millisecond)
//	}
//
// Game Rules:
//
// On tap boards, selecting a token removes its whole group when the group has
// at least MatchSize members. On swap boards two adjacent selections swap
// tokens, and any group that reaches MatchSize anywhere on the board is
// removed. Removed tokens shrink away, the tokens above fall into the gaps and
// new tokens drop in from the top.
//
// Coordinates put (0,0) at the bottom-left; y grows upward and gravity pulls
// toward y = 0.
package engine
