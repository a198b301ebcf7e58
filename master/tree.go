// Package master holds the canonical shared tree that all workers
// periodically reconcile with. The tree is mutated only through Merge;
// workers never expand it directly.
package master

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/tree"
)

// DefaultSnapshotDepth bounds how deep a pulled-back subtree reaches.
const DefaultSnapshotDepth = 16

// Tree is the shared canonical tree, keyed by StateKey. Node values are
// swapped whole under a per-key critical section, so concurrent readers
// observe either the pre-merge or post-merge node, never a torn one.
// Unrelated keys never contend.
type Tree struct {
	nodes   *xsync.MapOf[game.StateKey, tree.Node]
	regions *xsync.MapOf[game.StateKey, string]
}

func NewTree() *Tree {
	return &Tree{
		nodes:   xsync.NewMapOf[game.StateKey, tree.Node](),
		regions: xsync.NewMapOf[game.StateKey, string](),
	}
}

// Lookup returns the node for key, if present. The node's edge map is
// shared with the tree and must be treated as read-only; Merge never
// mutates a stored map in place, so concurrent reads are safe.
func (t *Tree) Lookup(key game.StateKey) (tree.Node, bool) {
	return t.nodes.Load(key)
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return t.nodes.Size()
}

// Snapshot returns an immutable copy of the subtree under rootKey, down
// to depthLimit levels, for a worker to resume from after a sync. Edges
// whose child node does not exist yet are copied as-is; the nodes simply
// do not appear in the result.
func (t *Tree) Snapshot(rootKey game.StateKey, depthLimit int) map[game.StateKey]tree.Node {
	if depthLimit <= 0 {
		depthLimit = DefaultSnapshotDepth
	}
	out := make(map[game.StateKey]tree.Node)
	frontier := []game.StateKey{rootKey}
	for depth := 0; depth <= depthLimit && len(frontier) > 0; depth++ {
		var next []game.StateKey
		for _, key := range frontier {
			if _, seen := out[key]; seen {
				continue
			}
			node, ok := t.nodes.Load(key)
			if !ok {
				continue
			}
			node = node.CloneEdges()
			out[key] = node
			for _, child := range node.Edges {
				next = append(next, child)
			}
		}
		frontier = next
	}
	return out
}

// TryAcquire claims exclusive merge access to the region rooted at
// rootKey without blocking. Returns false if another worker holds it;
// the caller should defer its sync and keep exploring.
func (t *Tree) TryAcquire(rootKey game.StateKey, workerID string) bool {
	_, loaded := t.regions.LoadOrStore(rootKey, workerID)
	return !loaded
}

// Release gives up merge access to the region rooted at rootKey.
func (t *Tree) Release(rootKey game.StateKey, workerID string) {
	t.regions.Compute(rootKey, func(old string, loaded bool) (string, bool) {
		if loaded && old == workerID {
			return "", true
		}
		return old, !loaded
	})
}

// Range visits every node in the tree. Iteration order is unspecified;
// the same read-only rule as Lookup applies to the visited edge maps.
func (t *Tree) Range(visit func(tree.Node) bool) {
	t.nodes.Range(func(_ game.StateKey, node tree.Node) bool {
		return visit(node)
	})
}
