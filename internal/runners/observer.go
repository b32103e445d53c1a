package runners

import "llmperf/internal/matrix"

// Observer is notified as a matrix run progresses. index is zero based and
// total counts every entry, skipped ones included.
type Observer interface {
	JobStarted(job matrix.Job, index, total int)
	JobFinished(outcome Outcome, index, total int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) JobStarted(matrix.Job, int, int) {}
func (NopObserver) JobFinished(Outcome, int, int)   {}
