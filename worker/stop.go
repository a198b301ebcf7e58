package worker

import "time"

// StopCondition tells a worker when to end its search loop. It is
// consulted once per episode.
type StopCondition func(elapsed time.Duration, iterations int) bool

// StopAfter ends the search once the given duration has elapsed.
func StopAfter(d time.Duration) StopCondition {
	return func(elapsed time.Duration, _ int) bool {
		return elapsed >= d
	}
}

// StopAtIterations ends the search after n episodes.
func StopAtIterations(n int) StopCondition {
	return func(_ time.Duration, iterations int) bool {
		return iterations >= n
	}
}

// StopWhenAny combines conditions: the first to trigger stops the
// search.
func StopWhenAny(conditions ...StopCondition) StopCondition {
	return func(elapsed time.Duration, iterations int) bool {
		for _, condition := range conditions {
			if condition(elapsed, iterations) {
				return true
			}
		}
		return false
	}
}
