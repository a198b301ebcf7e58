package tree

import (
	"fmt"

	"github.com/andysalerno/mcts/game"
)

// DeltaEntry is the portion of one node accumulated since the last sync:
// only the stats added and the edges created in this window, never the
// node's full local totals. Summing entries onto the master is therefore
// idempotent across sync cycles.
type DeltaEntry struct {
	Parent game.StateKey
	Stats  Stats
	Edges  map[game.Move]game.StateKey
}

// Delta is the set of node creations and mutations a LocalTree has
// accumulated since its last sync. Merge cost is O(len(delta)), not
// O(tree size).
type Delta map[game.StateKey]*DeltaEntry

// LocalTree is the private tree one worker grows between sync cycles.
// It is exclusively owned by that worker: no internal locking, single
// writer by construction.
type LocalTree struct {
	root  game.StateKey
	nodes map[game.StateKey]*Node
	delta Delta
}

// NewLocalTree creates a tree holding only the given root.
func NewLocalTree(root game.StateKey) *LocalTree {
	t := &LocalTree{
		root:  root,
		nodes: make(map[game.StateKey]*Node),
		delta: make(Delta),
	}
	rootNode := NewNode(root, game.NoState)
	t.nodes[root] = &rootNode
	return t
}

// NewLocalTreeFrom seeds a tree from a snapshot of master nodes. The
// snapshot nodes carry no delta: the worker only pushes back what it
// adds on top of them.
func NewLocalTreeFrom(root game.StateKey, nodes map[game.StateKey]Node) *LocalTree {
	t := &LocalTree{
		root:  root,
		nodes: make(map[game.StateKey]*Node, len(nodes)),
		delta: make(Delta),
	}
	for key, node := range nodes {
		n := node.CloneEdges()
		t.nodes[key] = &n
	}
	if _, ok := t.nodes[root]; !ok {
		rootNode := NewNode(root, game.NoState)
		t.nodes[root] = &rootNode
	}
	return t
}

// Root returns the fixed root key of this tree.
func (t *LocalTree) Root() game.StateKey { return t.root }

// Len returns the number of nodes currently held.
func (t *LocalTree) Len() int { return len(t.nodes) }

// Lookup returns the node for key, if present.
func (t *LocalTree) Lookup(key game.StateKey) (*Node, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// Expand applies move to the parent state, creating or reusing the child
// entry and recording the new edge in the delta. The parent state must
// correspond to parentKey (the worker holds it from walking down the
// tree). Fails with game.ErrIllegalMove if the domain rejects the move.
func (t *LocalTree) Expand(parentKey game.StateKey, move game.Move, parent game.State) (game.StateKey, game.State, error) {
	parentNode, ok := t.nodes[parentKey]
	if !ok {
		return 0, nil, fmt.Errorf("expand: unknown parent %d", parentKey)
	}

	childState, err := parent.Apply(move)
	if err != nil {
		return 0, nil, err
	}
	childKey := childState.Key()

	if parentNode.Edges == nil {
		parentNode.Edges = make(map[game.Move]game.StateKey)
	}
	if existing, ok := parentNode.Edges[move]; !ok {
		parentNode.Edges[move] = childKey
		entry := t.dirty(parentKey, parentNode.Parent)
		if entry.Edges == nil {
			entry.Edges = make(map[game.Move]game.StateKey)
		}
		entry.Edges[move] = childKey
	} else if existing != childKey {
		// Same move produced a different child than last time: the
		// domain's keys are not canonical. Keep the first edge.
		return 0, nil, fmt.Errorf("expand: move %v maps to both %d and %d", move, existing, childKey)
	}

	if _, ok := t.nodes[childKey]; !ok {
		childNode := NewNode(childKey, parentKey)
		t.nodes[childKey] = &childNode
		t.dirty(childKey, parentKey)
	}
	return childKey, childState, nil
}

// Backpropagate adds one visit with the given value to every node on the
// path (root to leaf), folding into each node's stats and marking it
// dirty in the delta.
func (t *LocalTree) Backpropagate(path []game.StateKey, value float64) {
	for _, key := range path {
		node, ok := t.nodes[key]
		if !ok {
			continue
		}
		node.Stats = node.Stats.AddVisit(value)
		entry := t.dirty(key, node.Parent)
		entry.Stats = entry.Stats.AddVisit(value)
	}
}

// MarkUnexpandable excludes the node from future expansion after the
// domain failed to materialize a child for it. Local-only: the flag is
// not part of the delta.
func (t *LocalTree) MarkUnexpandable(key game.StateKey) {
	if node, ok := t.nodes[key]; ok {
		node.Unexpandable = true
	}
}

// TakeDelta returns the accumulated delta and resets it. Single-writer,
// so a plain swap is atomic enough.
func (t *LocalTree) TakeDelta() Delta {
	delta := t.delta
	t.delta = make(Delta)
	return delta
}

func (t *LocalTree) dirty(key, parent game.StateKey) *DeltaEntry {
	entry, ok := t.delta[key]
	if !ok {
		entry = &DeltaEntry{Parent: parent}
		t.delta[key] = entry
	}
	return entry
}
