package worker

import (
	"math"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/tree"
)

// CSquared is the squared exploration constant for UCB1.
const CSquared = 2.0

// Candidate is one already-expanded child offered to the selection
// policy.
type Candidate struct {
	Move  game.Move
	Key   game.StateKey
	Stats tree.Stats
}

// SelectionPolicy picks which child to walk into. The reserved callback
// reports keys currently claimed by other workers; the policy must treat
// those as soft-excluded, not forbidden - when every candidate is
// reserved it still picks one, so workers never starve.
type SelectionPolicy interface {
	ChooseChild(parent tree.Stats, candidates []Candidate, reserved func(game.StateKey) bool) (game.Move, bool)
}

// UCB1 scores candidates with q/n + sqrt(c^2*ln(N)/n) and picks the
// maximum, preferring unvisited children.
type UCB1 struct {
	CSquared float64
}

func NewUCB1() *UCB1 {
	return &UCB1{CSquared: CSquared}
}

func (p *UCB1) ChooseChild(parent tree.Stats, candidates []Candidate, reserved func(game.StateKey) bool) (game.Move, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	normalizer := p.CSquared * math.Log(float64(max64(parent.Visits, 1)))

	bestAny, bestFree := -1, -1
	bestAnyScore, bestFreeScore := math.Inf(-1), math.Inf(-1)
	for i, c := range candidates {
		score := ucb1(c.Stats, normalizer)
		if score > bestAnyScore {
			bestAnyScore = score
			bestAny = i
		}
		if (reserved == nil || !reserved(c.Key)) && score > bestFreeScore {
			bestFreeScore = score
			bestFree = i
		}
	}

	if bestFree >= 0 {
		return candidates[bestFree].Move, true
	}
	// All children momentarily reserved: fall back to the best one.
	return candidates[bestAny].Move, true
}

func ucb1(s tree.Stats, normalizer float64) float64 {
	if s.Visits == 0 {
		return math.Inf(1) // always try an unvisited child first
	}
	n := float64(s.Visits)
	return s.ValueSum/n + math.Sqrt(normalizer/n)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
