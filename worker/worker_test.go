package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/master"
	"github.com/andysalerno/mcts/metrics"
	"github.com/andysalerno/mcts/reserve"
)

/* spec:
- every episode folds exactly one visit into the root, so after a final
  sync the master root's visit count equals the episode count
- expansion failure excludes the node, never kills the worker
- a lost reservation race on a childless node abandons the episode
- cancellation is a clean shutdown
*/

// faultyState offers a move but refuses to apply it.
type faultyState struct{}

func (faultyState) Key() game.StateKey      { return 1 }
func (faultyState) Player() string          { return "black" }
func (faultyState) LegalMoves() []game.Move { return []game.Move{game.SyntheticMove(0)} }
func (faultyState) Apply(game.Move) (game.State, error) {
	return nil, game.ErrIllegalMove
}

func TestWorkerRun(t *testing.T) {
	space := game.Synthetic{Branching: 2, MaxDepth: 3}
	m := master.NewTree()
	registry := reserve.NewRegistry()

	w := NewWorker(m, registry, space.Root(), game.EvaluateSynthetic,
		WithSeed(1), WithSyncEvery(8))

	err := w.Run(context.Background(), StopAtIterations(50))
	require.NoError(t, err)

	root, ok := m.Lookup(space.Root().Key())
	require.True(t, ok, "final sync must land the root")
	require.Equal(t, int64(50), root.Stats.Visits,
		"each episode backpropagates the root exactly once")
	require.NotEmpty(t, root.Edges)
}

func TestWorkerSurvivesExpansionFailure(t *testing.T) {
	m := master.NewTree()
	registry := reserve.NewRegistry()
	collector := metrics.NewCollector()
	collector.Start()

	// A long sync interval keeps the local tree (and its unexpandable
	// flag) stable for the whole run.
	w := NewWorker(m, registry, faultyState{}, func(game.State) float64 { return 0.5 },
		WithSeed(1), WithCollector(collector), WithSyncInterval(time.Hour))

	err := w.Run(context.Background(), StopAtIterations(5))
	require.NoError(t, err, "a defective domain must not kill the worker")

	// First episode fails the expansion and excludes the node; the
	// remaining four treat it as a leaf and score it directly.
	root, ok := m.Lookup(game.StateKey(1))
	require.True(t, ok)
	require.Equal(t, int64(4), root.Stats.Visits)
	require.Equal(t, int64(0), collector.Complete().Expansions)
}

func TestWorkerAbandonsEpisodeOnLostRace(t *testing.T) {
	space := game.Synthetic{Branching: 2, MaxDepth: 2}
	m := master.NewTree()
	registry := reserve.NewRegistry()
	collector := metrics.NewCollector()
	collector.Start()

	// Another worker holds the root before this one ever runs.
	require.NoError(t, registry.TryReserve(space.Root().Key(), "rival", time.Minute))

	w := NewWorker(m, registry, space.Root(), game.EvaluateSynthetic,
		WithSeed(1), WithCollector(collector))

	err := w.Run(context.Background(), StopAtIterations(1))
	require.NoError(t, err)

	require.Equal(t, int64(1), collector.Complete().RacesLost)
	_, ok := m.Lookup(space.Root().Key())
	require.False(t, ok, "abandoned episode leaves nothing to merge")
}

func TestWorkerCancellation(t *testing.T) {
	space := game.Synthetic{Branching: 4, MaxDepth: 8}
	m := master.NewTree()
	registry := reserve.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	w := NewWorker(m, registry, space.Root(), game.EvaluateSynthetic, WithSeed(1))
	go func() {
		done <- w.Run(ctx, StopAfter(time.Hour))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean shutdown, not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down after cancellation")
	}

	require.Equal(t, 0, registry.Len(), "all reservations must be released on exit")
}
