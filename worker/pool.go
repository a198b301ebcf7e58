package worker

import (
	"context"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/master"
	"github.com/andysalerno/mcts/metrics"
	"github.com/andysalerno/mcts/reserve"
)

// Pool runs a fixed set of workers over one shared master tree and
// reservation registry.
type Pool struct {
	master    *master.Tree
	registry  *reserve.Registry
	root      game.State
	workers   []*Worker
	collector metrics.Collector
}

// NewPool builds n workers exploring from root. Options are applied to
// every worker; each additionally gets its own random seed.
func NewPool(n int, root game.State, evaluate game.Evaluate, options ...Option) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{
		master:    master.NewTree(),
		registry:  reserve.NewRegistry(),
		root:      root,
		collector: metrics.NewCollector(),
	}

	base := rand.Uint64()
	for i := 0; i < n; i++ {
		perWorker := make([]Option, 0, len(options)+3)
		perWorker = append(perWorker, WithSeed(base+uint64(i)))
		perWorker = append(perWorker, options...)
		perWorker = append(perWorker, WithCollector(p.collector))
		p.workers = append(p.workers, NewWorker(p.master, p.registry, root, evaluate, perWorker...))
	}
	return p
}

// Run starts every worker and waits for all of them. Cancelling ctx
// shuts the pool down cleanly; one worker's hard failure stops the rest.
func (p *Pool) Run(ctx context.Context, stop StopCondition) error {
	p.collector.Start()
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx, stop)
		})
	}
	return g.Wait()
}

// Master exposes the shared tree, for reading results after Run.
func (p *Pool) Master() *master.Tree { return p.master }

// Registry exposes the shared reservation table.
func (p *Pool) Registry() *reserve.Registry { return p.registry }

// Metrics snapshots the pool-wide search counters.
func (p *Pool) Metrics() metrics.SearchMetrics { return p.collector.Complete() }

// Policy returns the visit share of each move out of the root, from the
// master tree's point of view. Empty until at least one sync landed.
func (p *Pool) Policy() map[game.Move]float64 {
	node, ok := p.master.Lookup(p.root.Key())
	if !ok || len(node.Edges) == 0 {
		return nil
	}

	visits := make(map[game.Move]int64, len(node.Edges))
	var total int64
	for move, childKey := range node.Edges {
		child, ok := p.master.Lookup(childKey)
		if !ok {
			continue
		}
		visits[move] = child.Stats.Visits
		total += child.Stats.Visits
	}
	if total == 0 {
		return nil
	}

	policy := make(map[game.Move]float64, len(visits))
	for move, v := range visits {
		policy[move] = float64(v) / float64(total)
	}
	return policy
}

// SweepInterval is how often the pool's registry sweeper reclaims
// expired reservations when enabled via RunWithSweeper.
const SweepInterval = time.Second

// RunWithSweeper is Run plus a background reservation sweeper for long
// searches.
func (p *Pool) RunWithSweeper(ctx context.Context, stop StopCondition) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.registry.RunSweeper(ctx, SweepInterval)
	return p.Run(ctx, stop)
}
