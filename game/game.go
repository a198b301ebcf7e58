package game

import (
	"errors"
	"math"
)

// StateKey canonically identifies a state. Two occurrences of the same
// underlying state, discovered independently by different workers via
// different move sequences, must produce equal keys. Immutable once computed.
type StateKey uint64

// NoState is a reserved key used where a node has no parent.
const NoState = StateKey(math.MaxUint64)

// Move is a single transition out of a state. Implementations must be
// comparable values: moves are used as map keys on tree edges.
type Move interface {
	String() string
}

// State is the domain side of the search. Implementations should be
// immutable - Apply returns a new state and leaves the receiver untouched.
type State interface {
	Key() StateKey
	Player() string
	LegalMoves() []Move
	Apply(Move) (State, error)
}

// Evaluate scores a state from the current player's perspective,
// in [-1, 1].
type Evaluate func(State) float64

// ErrIllegalMove is returned by Apply when the move is not legal in the
// receiver state.
var ErrIllegalMove = errors.New("illegal move")
