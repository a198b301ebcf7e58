package game

import "fmt"

// SyntheticMove indexes one of the branches out of a synthetic state.
type SyntheticMove int

func (m SyntheticMove) String() string {
	return fmt.Sprintf("m%d", int(m))
}

// Synthetic is a complete fixed-branching state space with arithmetic
// keys: the i-th child of key k has key k*branching+i+1, so equal states
// always produce equal keys without any hashing. Useful for exercising
// the search core end to end without a real game attached.
type Synthetic struct {
	Branching int
	MaxDepth  int
}

// Root returns the root state of the space.
func (s Synthetic) Root() State {
	return syntheticState{space: s, key: 0, depth: 0}
}

type syntheticState struct {
	space Synthetic
	key   StateKey
	depth int
}

func (st syntheticState) Key() StateKey { return st.key }

func (st syntheticState) Player() string {
	if st.depth%2 == 0 {
		return "black"
	}
	return "white"
}

func (st syntheticState) LegalMoves() []Move {
	if st.depth >= st.space.MaxDepth {
		return nil // terminal
	}
	moves := make([]Move, st.space.Branching)
	for i := range moves {
		moves[i] = SyntheticMove(i)
	}
	return moves
}

func (st syntheticState) Apply(move Move) (State, error) {
	m, ok := move.(SyntheticMove)
	if !ok || int(m) < 0 || int(m) >= st.space.Branching || st.depth >= st.space.MaxDepth {
		return nil, fmt.Errorf("%w: %v at depth %d", ErrIllegalMove, move, st.depth)
	}
	child := st.key*StateKey(st.space.Branching) + StateKey(m) + 1
	return syntheticState{space: st.space, key: child, depth: st.depth + 1}, nil
}

// EvaluateSynthetic derives a deterministic score in [-1, 1] from the
// state key, so repeated evaluations of the same state always agree.
func EvaluateSynthetic(s State) float64 {
	return float64(s.Key()%97)/48.0 - 1.0
}
