package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/worker"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a parallel search over the synthetic state space",
	Long: `Runs a pool of workers over the built-in synthetic state space and
prints the resulting root policy. Useful for benchmarking the merge and
reservation machinery without a real game attached.`,
	RunE: runSearch,
}

func init() {
	flags := searchCmd.Flags()
	flags.Int("workers", 4, "number of parallel workers")
	flags.Duration("duration", 2*time.Second, "search duration")
	flags.Int("branching", 8, "synthetic space branching factor")
	flags.Int("depth", 12, "synthetic space depth")
	flags.Int("sync-every", worker.DefaultSyncEvery, "expansions per sync attempt")
	flags.Duration("sync-interval", worker.DefaultSyncInterval, "elapsed-time sync trigger")
	flags.Duration("ttl", worker.DefaultReservationTTL, "reservation time to live")
	flags.Int("rollout", 0, "random rollout depth (0 = evaluate directly)")

	viper.SetEnvPrefix("MCTS")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	space := game.Synthetic{
		Branching: viper.GetInt("branching"),
		MaxDepth:  viper.GetInt("depth"),
	}
	root := space.Root()

	pool := worker.NewPool(
		viper.GetInt("workers"),
		root,
		game.EvaluateSynthetic,
		worker.WithSyncEvery(viper.GetInt("sync-every")),
		worker.WithSyncInterval(viper.GetDuration("sync-interval")),
		worker.WithReservationTTL(viper.GetDuration("ttl")),
		worker.WithRolloutDepth(viper.GetInt("rollout")),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	duration := viper.GetDuration("duration")
	log.Info().
		Int("workers", viper.GetInt("workers")).
		Dur("duration", duration).
		Int("branching", space.Branching).
		Int("depth", space.MaxDepth).
		Msg("search started")

	if err := pool.RunWithSweeper(ctx, worker.StopAfter(duration)); err != nil {
		return err
	}

	m := pool.Metrics()
	log.Info().
		Int64("episodes", m.Episodes).
		Int64("expansions", m.Expansions).
		Int64("syncs", m.Syncs).
		Int64("deferred_syncs", m.DeferredSyncs).
		Int64("races_lost", m.RacesLost).
		Int64("merge_conflicts", m.MergeConflicts).
		Int("master_nodes", pool.Master().Len()).
		Msg("search finished")

	policy := pool.Policy()
	moves := make([]game.Move, 0, len(policy))
	for move := range policy {
		moves = append(moves, move)
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].String() < moves[j].String() })
	for _, move := range moves {
		fmt.Printf("%s\t%.3f\n", move, policy[move])
	}
	return nil
}
