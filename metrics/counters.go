package metrics

import vm "github.com/VictoriaMetrics/metrics"

// Process-level counters, exposed for scraping via
// metrics.WritePrometheus. A nonzero conflict count in a deployment
// points at a defective StateKey function upstream, not at contention.
var (
	MergesTotal           = vm.NewCounter(`mcts_merges_total`)
	MergeConflictsTotal   = vm.NewCounter(`mcts_merge_conflicts_total`)
	MergedNodesTotal      = vm.NewCounter(`mcts_merged_nodes_total`)
	ReservationsTotal     = vm.NewCounter(`mcts_reservations_total`)
	ReservationRacesTotal = vm.NewCounter(`mcts_reservation_races_total`)
	DeferredSyncsTotal    = vm.NewCounter(`mcts_deferred_syncs_total`)
)
