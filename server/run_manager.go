package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmperf/internal/app"
	"llmperf/internal/logger"
	"llmperf/internal/metrics"
	"llmperf/internal/runners"
)

// Run states
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// ErrRunActive is returned when a matrix run is already in progress. One
// machine benchmarks one cell at a time.
var ErrRunActive = errors.New("a benchmark run is already in progress")

// MatrixRunner executes a cell's job matrix.
type MatrixRunner interface {
	RunAll(ctx context.Context) ([]runners.Outcome, error)
	Namespace() string
}

// RunnerFactory builds the runner for a request.
type RunnerFactory func(ctx context.Context, spec app.RunSpec, runID string, obs runners.Observer) (MatrixRunner, error)

// Run is the state of one matrix run. Values returned by RunManager are
// copies and safe to read without locking.
type Run struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Message     string             `json:"message"`
	Spec        app.RunSpec        `json:"request"`
	Namespace   string             `json:"namespace"`
	Progress    ProgressUpdate     `json:"progress"`
	Counts      map[string]int     `json:"counts,omitempty"`
	Outcomes    []runners.Outcome  `json:"outcomes,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`

	cancel    context.CancelFunc
	cancelled bool
}

// Terminal reports whether the run has finished.
func (r Run) Terminal() bool { return r.Status != RunRunning }

// ToSSEMessage renders the run as an SSE data frame.
func (r Run) ToSSEMessage() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("data: {\"id\":%q,\"status\":%q,\"error\":\"JSON marshal failed\"}\n\n", r.ID, r.Status)
	}
	return fmt.Sprintf("data: %s\n\n", data)
}

// RunManagerOptions configures a RunManager.
type RunManagerOptions struct {
	Factory  RunnerFactory
	Hub      *Hub
	Metrics  *metrics.Collector
	Logger   *logger.Logger
	OnFinish func(Run)
}

// RunManager starts matrix runs in the background and tracks their state.
type RunManager struct {
	base      context.Context
	factory   RunnerFactory
	hub       *Hub
	metrics   *metrics.Collector
	log       *logger.Logger
	onFinish  func(Run)
	runs      map[string]*Run
	listeners map[string][]chan Run
	active    string
	// starting reserves the active slot while a runner is being built
	starting  bool
	wg        sync.WaitGroup
	mutex     sync.RWMutex
}

// NewRunManager creates a manager. Runs are cancelled when base is done.
func NewRunManager(base context.Context, opts RunManagerOptions) *RunManager {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &RunManager{
		base:      base,
		factory:   opts.Factory,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		onFinish:  opts.OnFinish,
		runs:      make(map[string]*Run),
		listeners: make(map[string][]chan Run),
	}
}

// Start validates spec, builds its runner and executes it in the background.
func (m *RunManager) Start(spec app.RunSpec) (Run, error) {
	if m.factory == nil {
		return Run{}, errors.New("benchmark runs are not enabled on this server")
	}

	m.mutex.Lock()
	if m.active != "" || m.starting {
		m.mutex.Unlock()
		return Run{}, ErrRunActive
	}
	m.starting = true
	m.mutex.Unlock()

	// the factory may resolve models over the network, so it runs unlocked
	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(m.base)
	tracker := NewProgressTracker(runID, m.hub, func(p ProgressUpdate) { m.updateProgress(runID, p) })
	runner, err := m.factory(ctx, spec, runID, tracker)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.starting = false
	if err != nil {
		cancel()
		return Run{}, err
	}

	run := &Run{
		ID:        runID,
		Status:    RunRunning,
		Message:   "Starting benchmark matrix...",
		Spec:      spec,
		Namespace: runner.Namespace(),
		Progress:  ProgressUpdate{RunID: runID, Status: RunRunning},
		CreatedAt: time.Now(),
		cancel:    cancel,
	}
	m.runs[runID] = run
	m.active = runID
	m.metrics.RunStarted()
	m.log.InfoWithContext(&logger.LogContext{RunID: runID, Backend: spec.Backend, Hardware: spec.Hardware}, "Run started for %s", run.Namespace)
	tracker.SetStatus(RunRunning, run.Message)

	m.wg.Add(1)
	go m.execute(ctx, run.ID, runner, tracker)
	return *run, nil
}

// execute runs in the background. The run stays visible as running until
// the hub, the metrics and OnFinish have seen its final state.
func (m *RunManager) execute(ctx context.Context, runID string, runner MatrixRunner, tracker *ProgressTracker) {
	defer m.wg.Done()
	outcomes, err := runner.RunAll(ctx)

	counts := make(map[string]int)
	for status, n := range runners.Summary(outcomes) {
		counts[string(status)] = n
	}

	m.mutex.RLock()
	final := *m.runs[runID]
	m.mutex.RUnlock()

	now := time.Now()
	final.CompletedAt = &now
	final.Outcomes = outcomes
	final.Counts = counts
	switch {
	case final.cancelled || (err != nil && ctx.Err() != nil):
		final.Status = RunCancelled
		final.Message = "Run cancelled"
		if err != nil {
			final.Error = err.Error()
		}
	case err != nil:
		final.Status = RunFailed
		final.Message = "Run failed"
		final.Error = err.Error()
	default:
		final.Status = RunCompleted
		final.Message = fmt.Sprintf("Run completed: %d jobs", len(outcomes))
	}
	final.Progress = tracker.GetProgress()
	final.Progress.Status = final.Status
	final.cancel()

	m.metrics.RunFinished()
	logCtx := &logger.LogContext{RunID: runID, Backend: final.Spec.Backend, Hardware: final.Spec.Hardware}
	switch final.Status {
	case RunCompleted:
		m.log.InfoWithContext(logCtx, "%s", final.Message)
		tracker.Complete(counts)
	case RunCancelled:
		m.log.WarnWithContext(logCtx, "Run cancelled")
		tracker.Cancel(final.Error)
	default:
		m.log.ErrorWithContext(logCtx, "Run failed: %s", final.Error)
		tracker.Fail(final.Message, final.Error)
	}
	if m.onFinish != nil {
		m.onFinish(final)
	}

	m.mutex.Lock()
	*m.runs[runID] = final
	m.active = ""
	m.closeListeners(runID, final)
	m.mutex.Unlock()
}

func (m *RunManager) updateProgress(runID string, p ProgressUpdate) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Terminal() {
		return
	}
	run.Progress = p
	if p.CurrentJob != "" {
		run.Message = p.Message
	}
	m.broadcastUpdate(runID, *run)
}

// broadcastUpdate requires the mutex. Full channels skip the update.
func (m *RunManager) broadcastUpdate(runID string, run Run) {
	for _, ch := range m.listeners[runID] {
		select {
		case ch <- run:
		default:
			m.log.Debug("SSE listener for run %s is full, skipping update", runID)
		}
	}
}

// closeListeners requires the mutex.
func (m *RunManager) closeListeners(runID string, final Run) {
	m.broadcastUpdate(runID, final)
	for _, ch := range m.listeners[runID] {
		close(ch)
	}
	delete(m.listeners, runID)
}

// Get returns a run by id.
func (m *RunManager) Get(runID string) (Run, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns all runs, newest first.
func (m *RunManager) List() []Run {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs
}

// Active returns the id of the running run, if any.
func (m *RunManager) Active() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.active
}

// Cancel stops a running run. It returns false when the run is unknown or
// already finished.
func (m *RunManager) Cancel(runID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.Terminal() {
		return false
	}
	run.cancelled = true
	run.Message = "Cancelling run..."
	run.cancel()
	m.log.InfoWithContext(&logger.LogContext{RunID: runID}, "Cancellation requested")
	return true
}

// Subscribe returns the current state and a channel of updates. The channel
// is closed once the run finishes; for finished runs it is already closed.
func (m *RunManager) Subscribe(runID string) (Run, <-chan Run, func(), bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return Run{}, nil, func() {}, false
	}
	ch := make(chan Run, 16)
	if run.Terminal() {
		close(ch)
		return *run, ch, func() {}, true
	}
	m.listeners[runID] = append(m.listeners[runID], ch)
	unsubscribe := func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		listeners := m.listeners[runID]
		for i, c := range listeners {
			if c == ch {
				m.listeners[runID] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
	return *run, ch, unsubscribe, true
}

// Wait blocks until the run finishes or ctx is done.
func (m *RunManager) Wait(ctx context.Context, runID string) (Run, error) {
	run, updates, unsubscribe, ok := m.Subscribe(runID)
	if !ok {
		return Run{}, fmt.Errorf("run %s not found", runID)
	}
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case _, open := <-updates:
			if !open {
				final, _ := m.Get(runID)
				return final, nil
			}
		}
	}
}

// Shutdown cancels every running run and waits for them to finish.
func (m *RunManager) Shutdown() {
	m.mutex.Lock()
	for _, run := range m.runs {
		if !run.Terminal() {
			run.cancelled = true
			run.cancel()
		}
	}
	m.mutex.Unlock()
	m.wg.Wait()
}
