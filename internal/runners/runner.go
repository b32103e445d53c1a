// Package runners executes a benchmark matrix for one hardware/backend
// variant, uploading each artifact as soon as its job finishes.
package runners

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/matrix"
	"llmperf/internal/metrics"
	"llmperf/internal/results"
	"llmperf/internal/storage"
)

// Outcome is the terminal state of one job.
type Outcome struct {
	Job         matrix.Job     `json:"job"`
	Status      results.Status `json:"status"`
	Traceback   string         `json:"traceback,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Reused      bool           `json:"reused,omitempty"`
	UploadError string         `json:"upload_error,omitempty"`
}

// Options configures a Runner.
type Options struct {
	Variant      *Variant
	Subset       string
	Machine      string
	Organization string
	Models       []string
	Executor     Executor
	Store        storage.Store
	Logger       *logger.Logger
	Metrics      *metrics.Collector
	Observer     Observer
	SkipExisting bool
	RunID        string
}

// Runner drives the matrix of one (variant, subset, machine) cell.
type Runner struct {
	variant      *Variant
	subset       string
	machine      string
	organization string
	models       []string
	executor     Executor
	store        storage.Store
	logger       *logger.Logger
	metrics      *metrics.Collector
	observer     Observer
	skipExisting bool
	runID        string
}

// New validates the options. An unknown subset fails here, before any job runs.
func New(opts Options) (*Runner, error) {
	if opts.Variant == nil {
		return nil, errors.New("runner requires a variant")
	}
	if opts.Machine == "" {
		return nil, errors.New("runner requires a machine name")
	}
	if opts.Executor == nil {
		return nil, errors.New("runner requires an executor")
	}
	if opts.Store == nil {
		return nil, errors.New("runner requires an artifact store")
	}
	if _, err := opts.Variant.WeightsConfigs(opts.Subset); err != nil {
		return nil, err
	}
	r := &Runner{
		variant:      opts.Variant,
		subset:       opts.Subset,
		machine:      opts.Machine,
		organization: opts.Organization,
		models:       append([]string(nil), opts.Models...),
		executor:     opts.Executor,
		store:        opts.Store,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		observer:     opts.Observer,
		skipExisting: opts.SkipExisting,
		runID:        opts.RunID,
	}
	if r.logger == nil {
		r.logger = logger.Discard()
	}
	if r.observer == nil {
		r.observer = NopObserver{}
	}
	return r, nil
}

// Cell is the namespace tuple every job of this runner uploads into.
func (r *Runner) Cell() hardware.Cell {
	return hardware.Cell{Backend: r.variant.Backend(), Hardware: r.variant.Hardware(), Subset: r.subset, Machine: r.machine}
}

// Namespace is the remote namespace of the cell.
func (r *Runner) Namespace() string {
	return r.Cell().Namespace(r.organization)
}

// Variant returns the runner's variant.
func (r *Runner) Variant() *Variant { return r.variant }

// Models returns a copy of the models the matrix covers.
func (r *Runner) Models() []string { return append([]string(nil), r.models...) }

// Entries is the full product with support verdicts.
func (r *Runner) Entries() ([]matrix.Entry, error) {
	return matrix.Expand(r.models, r.subset, r.variant)
}

// ListJobs returns the supported jobs in execution order.
func (r *Runner) ListJobs() ([]matrix.Job, error) {
	return matrix.Generate(r.models, r.subset, r.variant)
}

// BuildBackendConfig renders the benchmark document for a job.
func (r *Runner) BuildBackendConfig(job matrix.Job) BenchmarkConfig {
	return BenchmarkConfig{
		Name:     job.Experiment(),
		Scenario: inferenceScenario(),
		Launcher: processLauncher(),
		Backend:  r.variant.BackendSection(job),
	}
}

func (r *Runner) jobLogger(job matrix.Job) *logger.ContextLogger {
	return r.logger.WithContext(&logger.LogContext{
		RunID:    r.runID,
		Backend:  job.Backend,
		Hardware: job.Hardware,
		Subset:   job.Subset,
		Machine:  r.machine,
		Model:    job.Model,
		Job:      job.Name(),
	})
}

// Execute runs one job and uploads its artifact. Executor failures become a
// failed outcome with a traceback and never escape as errors.
func (r *Runner) Execute(ctx context.Context, job matrix.Job) Outcome {
	log := r.jobLogger(job)
	ns := r.Namespace()
	start := time.Now()

	if r.skipExisting {
		if outcome, ok := r.existing(ctx, job); ok {
			log.Info("♻️ Artifact already present in %s, status %s", ns, outcome.Status)
			r.metrics.RecordOutcome(string(outcome.Status), job.Backend, job.Hardware, 0)
			return outcome
		}
	}

	cfg := r.BuildBackendConfig(job)
	log.Info("▶️ Running benchmark %s", cfg.Name)

	artifact, err := r.executor.Run(ctx, Request{Job: job, Config: cfg})
	outcome := Outcome{Job: job, Duration: time.Since(start)}
	if err != nil {
		outcome.Status = results.StatusFailed
		outcome.Traceback = traceback(err)
		artifact = failedArtifact(cfg, outcome.Traceback)
		log.Error("❌ Benchmark failed: %v", err)
	} else {
		outcome.Status, outcome.Traceback = statusOf(artifact)
		if outcome.Status == results.StatusFailed {
			log.Error("❌ Benchmark reported a traceback")
		} else {
			log.Info("✅ Benchmark succeeded in %s", outcome.Duration.Round(time.Second))
		}
	}

	// A cancelled run still records the failure remotely.
	if err := r.store.Put(context.WithoutCancel(ctx), ns, job.ArtifactPath(), artifact); err != nil {
		outcome.UploadError = err.Error()
		r.metrics.RecordUploadFailure(job.Backend, job.Hardware)
		log.Error("❌ Failed to upload %s to %s: %v", job.ArtifactPath(), ns, err)
	} else {
		log.Debug("📤 Uploaded %s to %s", job.ArtifactPath(), ns)
	}

	r.metrics.RecordOutcome(string(outcome.Status), job.Backend, job.Hardware, outcome.Duration)
	return outcome
}

// existing reads a previously uploaded artifact for the job.
func (r *Runner) existing(ctx context.Context, job matrix.Job) (Outcome, bool) {
	data, err := r.store.Get(ctx, r.Namespace(), job.ArtifactPath())
	if err != nil {
		return Outcome{}, false
	}
	status, tb := statusOf(data)
	return Outcome{Job: job, Status: status, Traceback: tb, Reused: true}, true
}

// RunAll walks the full matrix sequentially. Unsupported combinations are
// reported as skipped. A cancelled context stops the walk; outcomes gathered
// so far are returned with the context error.
func (r *Runner) RunAll(ctx context.Context) ([]Outcome, error) {
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}
	if err := r.store.Ensure(ctx, r.Namespace()); err != nil {
		return nil, fmt.Errorf("failed to prepare namespace %s: %w", r.Namespace(), err)
	}

	total := len(entries)
	r.logger.InfoWithContext(&logger.LogContext{
		RunID:    r.runID,
		Backend:  r.variant.Backend(),
		Hardware: r.variant.Hardware(),
		Subset:   r.subset,
		Machine:  r.machine,
	}, "🧮 Matrix has %d combinations for %d models", total, len(r.models))

	outcomes := make([]Outcome, 0, total)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		r.observer.JobStarted(entry.Job, i, total)

		var outcome Outcome
		if !entry.Supported {
			outcome = Outcome{Job: entry.Job, Status: results.StatusSkippedUnsupported}
			r.jobLogger(entry.Job).Info("⏭️ Skipping unsupported combination %s", entry.Job.Name())
			r.metrics.RecordOutcome(string(outcome.Status), entry.Job.Backend, entry.Job.Hardware, 0)
		} else {
			outcome = r.Execute(ctx, entry.Job)
		}

		outcomes = append(outcomes, outcome)
		r.observer.JobFinished(outcome, i, total)
	}
	return outcomes, nil
}

func traceback(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Traceback()
	}
	return err.Error()
}

// failedArtifact is uploaded in place of a real report so the failure is
// visible to the gatherer.
func failedArtifact(cfg BenchmarkConfig, tb string) []byte {
	doc := map[string]any{
		"config": cfg,
		"report": map[string]any{"traceback": tb},
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return []byte(fmt.Sprintf(`{"report":{"traceback":%q}}`, tb))
	}
	return data
}

// statusOf reads the traceback of an artifact. Unparseable artifacts count
// as failures.
func statusOf(artifact []byte) (results.Status, string) {
	doc, err := results.Decode(artifact)
	if err != nil {
		return results.StatusFailed, fmt.Sprintf("invalid artifact: %v", err)
	}
	failed := false
	tb := ""
	for _, row := range results.Flatten(doc) {
		rec := results.NewRecord(hardware.Cell{}, row)
		if rec.Failed() {
			failed = true
			tb = rec.Traceback
		}
	}
	if failed {
		return results.StatusFailed, tb
	}
	return results.StatusSucceeded, ""
}
