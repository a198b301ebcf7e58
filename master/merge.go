package master

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/metrics"
	"github.com/andysalerno/mcts/tree"
)

// Conflict records a structural mismatch found during a merge: the same
// (parent, move) pair pointing at two different children. This is never
// expected contention - it indicates a StateKey defect in the domain.
type Conflict struct {
	Parent      game.StateKey
	Move        game.Move
	MasterChild game.StateKey
	DeltaChild  game.StateKey
}

// Result reports which keys a merge touched and any conflicts it found.
type Result struct {
	Updated   []game.StateKey
	Conflicts []Conflict
}

// Merge folds a worker's delta into the tree. For each entry: an absent
// key is inserted, a present key has its stats summed and its edges
// unioned. A conflicting edge keeps the master's side and is reported,
// never fatal. Each key's update is applied atomically under its own
// critical section, so merges of disjoint deltas proceed fully in
// parallel and overlapping ones serialize per key only.
//
// Because stats merging is a sum and edge union is idempotent, applying
// independent deltas in any order yields the same final tree.
func (t *Tree) Merge(delta tree.Delta) Result {
	result := Result{Updated: make([]game.StateKey, 0, len(delta))}

	for key, entry := range delta {
		var conflicts []Conflict
		t.nodes.Compute(key, func(old tree.Node, loaded bool) (tree.Node, bool) {
			if !loaded {
				node := tree.Node{
					Key:    key,
					Parent: entry.Parent,
					Stats:  entry.Stats,
				}
				if len(entry.Edges) > 0 {
					node.Edges = make(map[game.Move]game.StateKey, len(entry.Edges))
					for move, child := range entry.Edges {
						node.Edges[move] = child
					}
				}
				return node, false
			}

			merged := old.CloneEdges()
			merged.Stats = old.Stats.Merge(entry.Stats)
			for move, child := range entry.Edges {
				existing, ok := merged.Edges[move]
				if ok && existing != child {
					conflicts = append(conflicts, Conflict{
						Parent:      key,
						Move:        move,
						MasterChild: existing,
						DeltaChild:  child,
					})
					continue // keep the master's edge
				}
				if merged.Edges == nil {
					merged.Edges = make(map[game.Move]game.StateKey, len(entry.Edges))
				}
				merged.Edges[move] = child
			}
			return merged, false
		})

		result.Updated = append(result.Updated, key)
		result.Conflicts = append(result.Conflicts, conflicts...)
	}

	sort.Slice(result.Updated, func(i, j int) bool {
		return result.Updated[i] < result.Updated[j]
	})

	metrics.MergesTotal.Inc()
	metrics.MergedNodesTotal.Add(len(result.Updated))
	if len(result.Conflicts) > 0 {
		metrics.MergeConflictsTotal.Add(len(result.Conflicts))
		for _, c := range result.Conflicts {
			log.Warn().
				Uint64("parent", uint64(c.Parent)).
				Str("move", c.Move.String()).
				Uint64("master_child", uint64(c.MasterChild)).
				Uint64("delta_child", uint64(c.DeltaChild)).
				Msg("merge conflict: same move maps to different children, keeping master's edge")
		}
	}
	return result
}
