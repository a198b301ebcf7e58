package tree

// Stats summarizes exploration results at a node. Visits of zero means
// the node is structural only: its key is known but it has never been
// evaluated.
type Stats struct {
	Visits   int64
	ValueSum float64
}

// Merge combines two stats by summing. Merging is commutative and
// associative, which is what lets deltas from many workers land on the
// master in any order without changing the final aggregate.
func (s Stats) Merge(other Stats) Stats {
	return Stats{
		Visits:   s.Visits + other.Visits,
		ValueSum: s.ValueSum + other.ValueSum,
	}
}

// Mean returns the average per-visit value, or 0 for an unvisited node.
func (s Stats) Mean() float64 {
	if s.Visits == 0 {
		return 0
	}
	return s.ValueSum / float64(s.Visits)
}

// AddVisit folds one visit with the given value into the stats.
func (s Stats) AddVisit(value float64) Stats {
	return Stats{Visits: s.Visits + 1, ValueSum: s.ValueSum + value}
}
