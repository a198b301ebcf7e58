// Package worker drives the search: each worker grows a private tree,
// steering around states claimed by its peers, and periodically folds
// its findings into the shared master tree, pulling back the merged
// subtree in exchange.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/master"
	"github.com/andysalerno/mcts/metrics"
	"github.com/andysalerno/mcts/reserve"
	"github.com/andysalerno/mcts/tree"
)

// Default knobs. Sync fires every K expansions or every T elapsed,
// whichever comes first.
const (
	DefaultSyncEvery      = 32
	DefaultSyncInterval   = 100 * time.Millisecond
	DefaultReservationTTL = 250 * time.Millisecond
)

// Worker explores the state space from a fixed root. A worker owns its
// LocalTree exclusively; the master tree and reservation registry are
// the only shared structures it touches.
type Worker struct {
	id       string
	master   *master.Tree
	registry *reserve.Registry
	root     game.State

	local     *tree.LocalTree
	evaluate  game.Evaluate
	policy    SelectionPolicy
	collector metrics.Collector
	rng       *rand.Rand

	syncEvery     int
	syncInterval  time.Duration
	ttl           time.Duration
	snapshotDepth int
	rolloutDepth  int

	held      map[game.StateKey]struct{}
	sinceSync int
	lastSync  time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithPolicy replaces the default UCB1 selection policy.
func WithPolicy(policy SelectionPolicy) Option {
	return func(w *Worker) {
		if policy != nil {
			w.policy = policy
		}
	}
}

// WithSyncEvery sets how many expansions trigger a sync attempt.
func WithSyncEvery(k int) Option {
	return func(w *Worker) {
		if k > 0 {
			w.syncEvery = k
		}
	}
}

// WithSyncInterval sets the elapsed-time sync trigger.
func WithSyncInterval(t time.Duration) Option {
	return func(w *Worker) {
		if t > 0 {
			w.syncInterval = t
		}
	}
}

// WithReservationTTL sets how long a claim on a state lives without
// renewal. Keep it short: a few expansion cycles.
func WithReservationTTL(ttl time.Duration) Option {
	return func(w *Worker) {
		if ttl > 0 {
			w.ttl = ttl
		}
	}
}

// WithSnapshotDepth bounds the subtree pulled back after each sync.
func WithSnapshotDepth(depth int) Option {
	return func(w *Worker) {
		if depth > 0 {
			w.snapshotDepth = depth
		}
	}
}

// WithRolloutDepth enables a bounded random playout from each newly
// expanded child before evaluating, instead of evaluating it directly.
func WithRolloutDepth(depth int) Option {
	return func(w *Worker) {
		if depth > 0 {
			w.rolloutDepth = depth
		}
	}
}

// WithCollector attaches a metrics collector.
func WithCollector(collector metrics.Collector) Option {
	return func(w *Worker) {
		if collector != nil {
			w.collector = collector
		}
	}
}

// WithSeed fixes the worker's random source, for reproducible tests.
func WithSeed(seed uint64) Option {
	return func(w *Worker) {
		w.rng = rand.New(rand.NewSource(seed))
	}
}

func NewWorker(m *master.Tree, registry *reserve.Registry, root game.State, evaluate game.Evaluate, options ...Option) *Worker {
	w := &Worker{
		id:            uuid.New().String(),
		master:        m,
		registry:      registry,
		root:          root,
		local:         tree.NewLocalTree(root.Key()),
		evaluate:      evaluate,
		policy:        NewUCB1(),
		collector:     metrics.NewNoopCollector(),
		rng:           rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
		syncEvery:     DefaultSyncEvery,
		syncInterval:  DefaultSyncInterval,
		ttl:           DefaultReservationTTL,
		snapshotDepth: master.DefaultSnapshotDepth,
		held:          make(map[game.StateKey]struct{}),
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// ID returns the worker's unique identity, as recorded in reservations.
func (w *Worker) ID() string { return w.id }

// Local exposes the worker's current private tree. Not safe to touch
// while Run is in flight.
func (w *Worker) Local() *tree.LocalTree { return w.local }

// Run explores until the stop condition triggers or ctx is cancelled.
// Cancellation is a clean shutdown: the current episode completes, a
// final sync is attempted, and nil is returned. Only internal invariant
// violations surface as errors.
func (w *Worker) Run(ctx context.Context, stop StopCondition) error {
	start := time.Now()
	w.lastSync = start

	iterations := 0
	for !stop(time.Since(start), iterations) {
		if ctx.Err() != nil {
			break
		}
		if err := w.episode(); err != nil {
			w.releaseAll()
			return err
		}
		iterations++
		w.collector.AddEpisode()
		if w.shouldSync() {
			w.trySync()
		}
	}

	w.releaseAll()
	w.finalSync()
	return nil
}

// maxEpisodeDepth caps one descent. Domains with repeated states can
// form cycles through the edge maps; an episode must still terminate.
const maxEpisodeDepth = 256

// episode walks root to frontier once: select through fully expanded
// nodes, expand one new child, evaluate it, and fold the result back up
// the path.
func (w *Worker) episode() error {
	state := w.root
	key := w.local.Root()
	path := []game.StateKey{key}

	for len(path) <= maxEpisodeDepth {
		node, ok := w.local.Lookup(key)
		if !ok {
			return errors.New("episode: path left the local tree")
		}

		moves := state.LegalMoves()
		if len(moves) == 0 || node.Unexpandable {
			// Terminal (or given-up) leaf: score the state itself.
			w.local.Backpropagate(path, w.evaluate(state))
			return nil
		}

		if unexplored := unexploredMoves(moves, node.Edges); len(unexplored) > 0 {
			expanded, err := w.expand(node, state, unexplored, path)
			if err != nil {
				return err
			}
			if expanded {
				return nil
			}
			// Lost the reservation race and the node has no children to
			// fall back into: abandon this episode.
			if len(node.Edges) == 0 {
				return nil
			}
		}

		move, ok := w.chooseChild(node)
		if !ok {
			w.local.Backpropagate(path, w.evaluate(state))
			return nil
		}
		childKey, childState, err := w.local.Expand(key, move, state)
		if err != nil {
			// The domain rejected a move it previously offered.
			log.Warn().Err(err).Str("worker", w.id).Msg("descent move rejected, excluding node")
			w.local.MarkUnexpandable(key)
			return nil
		}
		key, state = childKey, childState
		path = append(path, key)
	}

	// Depth cap hit; score where we stand.
	w.local.Backpropagate(path, w.evaluate(state))
	return nil
}

// expand claims the node and materializes one unexplored child. Returns
// false without error when the reservation race was lost, in which case
// the caller picks an alternate.
func (w *Worker) expand(node *tree.Node, state game.State, unexplored []game.Move, path []game.StateKey) (bool, error) {
	if err := w.reserve(node.Key); err != nil {
		var busy *reserve.AlreadyReservedError
		if errors.As(err, &busy) {
			w.collector.AddRaceLost()
			return false, nil
		}
		return false, err
	}

	move := unexplored[w.rng.Intn(len(unexplored))]
	childKey, childState, err := w.local.Expand(node.Key, move, state)
	if err != nil {
		// Illegal move or defective domain: exclude the node, keep the
		// worker alive.
		log.Warn().Err(err).Str("worker", w.id).Uint64("node", uint64(node.Key)).Msg("expansion failed, excluding node")
		w.local.MarkUnexpandable(node.Key)
		w.release(node.Key)
		return true, nil
	}

	w.collector.AddExpansion()
	w.sinceSync++
	if len(unexplored) == 1 {
		// Node is now fully expanded; the claim serves no one.
		w.release(node.Key)
	}

	path = append(path, childKey)
	w.local.Backpropagate(path, w.rollout(childState))
	return true, nil
}

// rollout plays random moves from the state for up to rolloutDepth
// steps, then evaluates where it landed. With rollout disabled the
// expanded state is evaluated directly.
func (w *Worker) rollout(state game.State) float64 {
	for depth := 0; depth < w.rolloutDepth; depth++ {
		moves := state.LegalMoves()
		if len(moves) == 0 {
			break
		}
		next, err := state.Apply(moves[w.rng.Intn(len(moves))])
		if err != nil {
			break
		}
		state = next
	}
	return w.evaluate(state)
}

func (w *Worker) chooseChild(node *tree.Node) (game.Move, bool) {
	candidates := make([]Candidate, 0, len(node.Edges))
	for move, childKey := range node.Edges {
		var stats tree.Stats
		if child, ok := w.local.Lookup(childKey); ok {
			stats = child.Stats
		}
		candidates = append(candidates, Candidate{Move: move, Key: childKey, Stats: stats})
	}
	return w.policy.ChooseChild(node.Stats, candidates, w.reservedByOther)
}

func (w *Worker) reservedByOther(key game.StateKey) bool {
	holder, ok := w.registry.Holder(key)
	return ok && holder != w.id
}

func (w *Worker) reserve(key game.StateKey) error {
	if _, held := w.held[key]; held {
		if err := w.registry.Renew(key, w.id, w.ttl); err == nil {
			return nil
		}
		// Expired under us; fall through and race for it again.
		delete(w.held, key)
	}
	if err := w.registry.TryReserve(key, w.id, w.ttl); err != nil {
		return err
	}
	w.held[key] = struct{}{}
	return nil
}

func (w *Worker) release(key game.StateKey) {
	if _, held := w.held[key]; !held {
		return
	}
	delete(w.held, key)
	_ = w.registry.Release(key, w.id) // NotOwner just means it already expired
}

func (w *Worker) releaseAll() {
	for key := range w.held {
		w.release(key)
	}
}

func (w *Worker) shouldSync() bool {
	return w.sinceSync >= w.syncEvery || time.Since(w.lastSync) >= w.syncInterval
}

// finalSync makes a bounded effort to land the remaining delta before
// the worker exits. If the region stays busy the delta is dropped:
// unmerged local work was never guaranteed durable.
func (w *Worker) finalSync() {
	for attempt := 0; attempt < 10; attempt++ {
		if w.trySync() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// trySync attempts a non-blocking merge with the master. If the region
// is busy the worker simply keeps exploring; sync is opportunistic,
// never required for forward progress.
func (w *Worker) trySync() bool {
	rootKey := w.local.Root()
	if !w.master.TryAcquire(rootKey, w.id) {
		w.collector.AddDeferredSync()
		metrics.DeferredSyncsTotal.Inc()
		return false
	}
	defer w.master.Release(rootKey, w.id)

	result := w.master.Merge(w.local.TakeDelta())
	if n := len(result.Conflicts); n > 0 {
		w.collector.AddMergeConflicts(n)
	}

	snapshot := w.master.Snapshot(rootKey, w.snapshotDepth)
	w.local = tree.NewLocalTreeFrom(rootKey, snapshot)

	// Claims made for the old tree are no longer relevant.
	w.releaseAll()

	w.collector.AddSync()
	w.sinceSync = 0
	w.lastSync = time.Now()
	return true
}

func unexploredMoves(moves []game.Move, edges map[game.Move]game.StateKey) []game.Move {
	if len(edges) == 0 {
		return moves
	}
	var out []game.Move
	for _, move := range moves {
		if _, ok := edges[move]; !ok {
			out = append(out, move)
		}
	}
	return out
}
