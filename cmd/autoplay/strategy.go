package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wricardo/tilematch/game/engine"
)

// Strategy picks the next move from the hints the server offers. On tap
// boards a hint is a group and any of its cells can be selected; on swap
// boards it is the adjacent pair to swap.
type Strategy interface {
	Name() string
	Choose(hints []engine.MatchSet) engine.MatchSet
}

// LargestStrategy clears the biggest group first
type LargestStrategy struct{}

func (LargestStrategy) Name() string { return "largest" }

func (LargestStrategy) Choose(hints []engine.MatchSet) engine.MatchSet {
	var best engine.MatchSet
	for _, h := range hints {
		if len(h) > len(best) {
			best = h
		}
	}
	return best
}

// SmallestStrategy clears the smallest group first, saving big groups to grow
type SmallestStrategy struct{}

func (SmallestStrategy) Name() string { return "smallest" }

func (SmallestStrategy) Choose(hints []engine.MatchSet) engine.MatchSet {
	var best engine.MatchSet
	for _, h := range hints {
		if len(h) == 0 {
			continue
		}
		if best == nil || len(h) < len(best) {
			best = h
		}
	}
	return best
}

// LowestStrategy plays the move reaching lowest on the board. Clearing near
// the bottom makes more tokens fall, which is where cascades come from.
type LowestStrategy struct{}

func (LowestStrategy) Name() string { return "lowest" }

func (LowestStrategy) Choose(hints []engine.MatchSet) engine.MatchSet {
	var best engine.MatchSet
	bestY := 0
	for _, h := range hints {
		if len(h) == 0 {
			continue
		}
		y := lowestRow(h)
		if best == nil || y < bestY || (y == bestY && len(h) > len(best)) {
			best, bestY = h, y
		}
	}
	return best
}

func lowestRow(m engine.MatchSet) int {
	low := m[0].Y
	for _, p := range m[1:] {
		if p.Y < low {
			low = p.Y
		}
	}
	return low
}

var strategies = map[string]Strategy{
	"largest":  LargestStrategy{},
	"smallest": SmallestStrategy{},
	"lowest":   LowestStrategy{},
}

// StrategyNames lists the registered strategies
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStrategy looks a strategy up by name
func NewStrategy(name string) (Strategy, error) {
	s, ok := strategies[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(StrategyNames(), ", "))
	}
	return s, nil
}
