package metrics

import (
	"sync/atomic"
	"time"
)

// SearchMetrics is a snapshot of one search run.
type SearchMetrics struct {
	StartTime      time.Time
	Duration       time.Duration
	Episodes       int64
	Expansions     int64
	Syncs          int64
	DeferredSyncs  int64
	RacesLost      int64
	MergeConflicts int64
}

// Collector accumulates counters during a search. All Add methods are
// safe for concurrent use from many workers.
type Collector interface {
	Start()
	AddEpisode()
	AddExpansion()
	AddSync()
	AddDeferredSync()
	AddRaceLost()
	AddMergeConflicts(n int)
	Complete() SearchMetrics
}

type collector struct {
	startTime      time.Time
	episodes       atomic.Int64
	expansions     atomic.Int64
	syncs          atomic.Int64
	deferredSyncs  atomic.Int64
	racesLost      atomic.Int64
	mergeConflicts atomic.Int64
}

func NewCollector() Collector {
	return &collector{}
}

func (c *collector) Start() {
	c.startTime = time.Now()
}

func (c *collector) AddEpisode()   { c.episodes.Add(1) }
func (c *collector) AddExpansion() { c.expansions.Add(1) }

func (c *collector) AddSync()         { c.syncs.Add(1) }
func (c *collector) AddDeferredSync() { c.deferredSyncs.Add(1) }
func (c *collector) AddRaceLost()     { c.racesLost.Add(1) }

func (c *collector) AddMergeConflicts(n int) {
	c.mergeConflicts.Add(int64(n))
}

func (c *collector) Complete() SearchMetrics {
	return SearchMetrics{
		StartTime:      c.startTime,
		Duration:       time.Since(c.startTime),
		Episodes:       c.episodes.Load(),
		Expansions:     c.expansions.Load(),
		Syncs:          c.syncs.Load(),
		DeferredSyncs:  c.deferredSyncs.Load(),
		RacesLost:      c.racesLost.Load(),
		MergeConflicts: c.mergeConflicts.Load(),
	}
}

type noopCollector struct{}

// NewNoopCollector returns a collector that records nothing, for callers
// that do not care about search metrics.
func NewNoopCollector() Collector {
	return noopCollector{}
}

func (noopCollector) Start()                  {}
func (noopCollector) AddEpisode()             {}
func (noopCollector) AddExpansion()           {}
func (noopCollector) AddSync()                {}
func (noopCollector) AddDeferredSync()        {}
func (noopCollector) AddRaceLost()            {}
func (noopCollector) AddMergeConflicts(int)   {}
func (noopCollector) Complete() SearchMetrics { return SearchMetrics{} }
