package server

import (
	"fmt"
	"sync"
	"time"

	"llmperf/internal/matrix"
	"llmperf/internal/results"
	"llmperf/internal/runners"
)

// ProgressTracker follows one matrix run. It implements runners.Observer and
// broadcasts progress to the hub at most once per throttle interval.
type ProgressTracker struct {
	RunID        string
	StartTime    time.Time
	TotalSteps   int
	CurrentStep  int
	CurrentJob   string
	CurrentModel string
	Status       string
	Hub          *Hub

	counts           map[results.Status]int
	onUpdate         func(ProgressUpdate)
	mutex            sync.RWMutex
	lastBroadcast    time.Time
	throttleInterval time.Duration
}

// NewProgressTracker creates a tracker. onUpdate, if set, receives every
// update regardless of throttling.
func NewProgressTracker(runID string, hub *Hub, onUpdate func(ProgressUpdate)) *ProgressTracker {
	return &ProgressTracker{
		RunID:            runID,
		StartTime:        time.Now(),
		Status:           RunRunning,
		Hub:              hub,
		counts:           make(map[results.Status]int),
		onUpdate:         onUpdate,
		throttleInterval: 1 * time.Second,
	}
}

// JobStarted records the job being executed.
func (pt *ProgressTracker) JobStarted(job matrix.Job, index, total int) {
	pt.mutex.Lock()
	pt.TotalSteps = total
	pt.CurrentStep = index
	pt.CurrentJob = job.Name()
	pt.CurrentModel = job.Model
	pt.mutex.Unlock()

	pt.publish(false)
}

// JobFinished counts the outcome. The last job is always broadcast.
func (pt *ProgressTracker) JobFinished(outcome runners.Outcome, index, total int) {
	pt.mutex.Lock()
	pt.TotalSteps = total
	pt.CurrentStep = index + 1
	pt.counts[outcome.Status]++
	pt.mutex.Unlock()

	pt.publish(index+1 == total)
}

// GetProgress returns the current progress information
func (pt *ProgressTracker) GetProgress() ProgressUpdate {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()
	return pt.progressLocked()
}

func (pt *ProgressTracker) progressLocked() ProgressUpdate {
	elapsed := time.Since(pt.StartTime).Seconds()
	var progress float64
	if pt.TotalSteps > 0 {
		progress = float64(pt.CurrentStep) / float64(pt.TotalSteps) * 100
	}

	var estimatedRemaining float64
	if progress > 0 {
		estimatedRemaining = (elapsed / progress) * (100 - progress)
	}

	return ProgressUpdate{
		RunID:                  pt.RunID,
		Status:                 pt.Status,
		CurrentJob:             pt.CurrentJob,
		CurrentModel:           pt.CurrentModel,
		Progress:               progress,
		ElapsedTime:            elapsed,
		EstimatedTimeRemaining: estimatedRemaining,
		TotalSteps:             pt.TotalSteps,
		CurrentStepNumber:      pt.CurrentStep,
		Succeeded:              pt.counts[results.StatusSucceeded],
		Failed:                 pt.counts[results.StatusFailed],
		Skipped:                pt.counts[results.StatusSkippedUnsupported],
		Message:                pt.descriptionLocked(),
	}
}

// Description is a human readable summary of the current step.
func (pt *ProgressTracker) Description() string {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()
	return pt.descriptionLocked()
}

func (pt *ProgressTracker) descriptionLocked() string {
	if pt.CurrentJob == "" {
		return "Preparing benchmark matrix..."
	}
	return fmt.Sprintf("Running %s (%d/%d)", pt.CurrentJob, pt.CurrentStep, pt.TotalSteps)
}

func (pt *ProgressTracker) publish(force bool) {
	pt.mutex.Lock()
	update := pt.progressLocked()
	now := time.Now()
	broadcast := force || now.Sub(pt.lastBroadcast) >= pt.throttleInterval
	if broadcast {
		pt.lastBroadcast = now
	}
	pt.mutex.Unlock()

	if pt.onUpdate != nil {
		pt.onUpdate(update)
	}
	if broadcast {
		pt.Hub.Publish(NewProgressMessage(pt.RunID, update))
	}
}

// SetStatus updates the run status and broadcasts immediately
func (pt *ProgressTracker) SetStatus(status, message string) {
	pt.mutex.Lock()
	pt.Status = status
	update := StatusUpdate{
		RunID:     pt.RunID,
		Status:    status,
		Message:   message,
		CreatedAt: pt.StartTime,
		UpdatedAt: time.Now(),
	}
	pt.mutex.Unlock()

	pt.Hub.Publish(NewStatusMessage(pt.RunID, update))
}

// Complete marks the run as completed and broadcasts the outcome counts
func (pt *ProgressTracker) Complete(counts map[string]int) {
	pt.mutex.Lock()
	pt.Status = RunCompleted
	pt.CurrentStep = pt.TotalSteps
	completion := CompletionMessage{
		RunID:     pt.RunID,
		Status:    RunCompleted,
		Counts:    counts,
		Duration:  time.Since(pt.StartTime).Seconds(),
		Completed: time.Now(),
	}
	pt.mutex.Unlock()

	pt.Hub.Publish(NewCompletionMessage(pt.RunID, completion))
}

// Fail marks the run as failed and broadcasts error information
func (pt *ProgressTracker) Fail(errorMsg, details string) {
	pt.mutex.Lock()
	pt.Status = RunFailed
	pt.mutex.Unlock()

	pt.Hub.Publish(NewErrorMessage(pt.RunID, ErrorMessage{
		RunID:   pt.RunID,
		Error:   "Benchmark run failed",
		Message: errorMsg,
		Details: details,
	}))
}

// Cancel marks the run as cancelled and broadcasts cancellation information
func (pt *ProgressTracker) Cancel(reason string) {
	pt.mutex.Lock()
	pt.Status = RunCancelled
	pt.mutex.Unlock()

	pt.Hub.Publish(NewCancellationMessage(pt.RunID, CancellationMessage{
		RunID:     pt.RunID,
		Status:    RunCancelled,
		Message:   "Benchmark run cancelled",
		Cancelled: time.Now(),
		Reason:    reason,
	}))
}
