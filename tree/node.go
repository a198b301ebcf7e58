package tree

import "github.com/andysalerno/mcts/game"

// Node is one entry in a search tree, identified by its StateKey. Edges
// map a move to the child's key; a child key may be present before the
// child node itself exists (an unexpanded edge). Parent is a lookup
// back-reference only, never an ownership edge.
//
// Nodes are passed around by value. The master tree swaps whole Node
// values in and out, so a reader always sees either the pre-merge or the
// post-merge node, never a half-updated one.
type Node struct {
	Key          game.StateKey
	Parent       game.StateKey
	Stats        Stats
	Edges        map[game.Move]game.StateKey
	Unexpandable bool
}

// NewNode returns a structural node with no stats and no edges. Use
// game.NoState as parent for a root.
func NewNode(key, parent game.StateKey) Node {
	return Node{Key: key, Parent: parent}
}

// CloneEdges returns a copy of the node whose edge map shares nothing
// with the receiver's. Required before mutating a node that others may
// still be reading.
func (n Node) CloneEdges() Node {
	if n.Edges == nil {
		return n
	}
	edges := make(map[game.Move]game.StateKey, len(n.Edges))
	for move, child := range n.Edges {
		edges[move] = child
	}
	n.Edges = edges
	return n
}

// Child returns the key the given move leads to, if that edge exists.
func (n Node) Child(move game.Move) (game.StateKey, bool) {
	child, ok := n.Edges[move]
	return child, ok
}
