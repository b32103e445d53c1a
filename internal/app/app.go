// Package app wires configuration into the stores, catalogs and runners
// shared by the CLI and the API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"llmperf/internal/api"
	"llmperf/internal/config"
	"llmperf/internal/hardware"
	"llmperf/internal/leaderboard"
	"llmperf/internal/logger"
	"llmperf/internal/metrics"
	"llmperf/internal/models"
	"llmperf/internal/results"
	"llmperf/internal/runners"
	"llmperf/internal/storage"
)

// App holds the long lived collaborators of one process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Collector
	Hub     *api.Client

	store    storage.Store
	closer   io.Closer
	executor runners.Executor
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Store    storage.Store
	Executor runners.Executor
	Metrics  *metrics.Collector
}

// New opens the configured artifact store.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires a configuration")
	}
	if log == nil {
		log = logger.Discard()
	}
	a := &App{
		Config:   cfg,
		Log:      log,
		Metrics:  opts.Metrics,
		executor: opts.Executor,
		Hub: api.NewClient(api.Options{
			Endpoint:       cfg.HubEndpoint,
			DatasetsServer: cfg.DatasetsServer,
			Token:          cfg.HubToken,
			Logger:         log,
		}),
	}
	if a.Metrics == nil {
		a.Metrics = metrics.NewCollector()
	}

	if opts.Store != nil {
		a.store = opts.Store
		return a, nil
	}
	switch cfg.ArtifactStore {
	case config.StoreHub:
		a.store = storage.NewHubStore(a.Hub)
	case config.StoreGCS:
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return nil, err
		}
		a.store, a.closer = s, s
	case config.StoreLocal:
		s, err := storage.NewLocalStore(cfg.LocalStoreDir)
		if err != nil {
			return nil, err
		}
		a.store = s
	default:
		return nil, fmt.Errorf("unknown artifact store %q", cfg.ArtifactStore)
	}
	log.Debug("Using %s artifact store", cfg.ArtifactStore)
	return a, nil
}

// Close releases the artifact store.
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Store is the artifact store.
func (a *App) Store() storage.Store { return a.store }

// Hardware loads the hardware catalog from the configured path.
func (a *App) Hardware() (*hardware.Catalog, error) {
	return hardware.Load(a.Config.HardwareConfig)
}

// Models resolves the model catalog. explicit overrides the configured list.
func (a *App) Models(ctx context.Context, explicit []string) models.Catalog {
	if len(explicit) == 0 {
		explicit = a.Config.Models
	}
	return models.Load(ctx, models.Options{
		Debug:    a.Config.Debug,
		Explicit: explicit,
		TopN:     a.Config.TopModels,
		Rows:     a.Hub,
		Logger:   a.Log,
	})
}

// Gatherer reads artifacts from the store.
func (a *App) Gatherer() *results.Gatherer {
	return results.NewGatherer(a.store, a.Config.Organization, a.Metrics)
}

// Executor is the benchmark launcher.
func (a *App) Executor() runners.Executor {
	if a.executor != nil {
		return a.executor
	}
	return &runners.ProcessExecutor{
		Command: strings.Fields(a.Config.Launcher),
		WorkDir: a.Config.WorkDir,
		Logger:  a.Log,
	}
}

// RunSpec selects one cell to benchmark. Empty fields fall back to the
// configuration.
type RunSpec struct {
	Hardware     string   `json:"hardware" binding:"required"`
	Backend      string   `json:"backend" binding:"required"`
	Subset       string   `json:"subset"`
	Machine      string   `json:"machine"`
	Models       []string `json:"models"`
	SkipExisting bool     `json:"skip_existing"`
}

// NewRunner builds a runner for spec.
func (a *App) NewRunner(ctx context.Context, spec RunSpec, runID string, obs runners.Observer) (*runners.Runner, error) {
	variant, err := runners.Lookup(spec.Hardware, spec.Backend)
	if err != nil {
		return nil, err
	}
	subset := firstNonEmpty(spec.Subset, a.Config.Subset)
	if subset == "" {
		return nil, errors.New("a subset is required (flag or SUBSET)")
	}
	machine := firstNonEmpty(spec.Machine, a.Config.Machine)
	if machine == "" {
		return nil, errors.New("a machine name is required (flag or MACHINE)")
	}
	catalog := a.Models(ctx, spec.Models)
	return runners.New(runners.Options{
		Variant:      variant,
		Subset:       subset,
		Machine:      machine,
		Organization: a.Config.Organization,
		Models:       catalog.Models,
		Executor:     a.Executor(),
		Store:        a.store,
		Logger:       a.Log,
		Metrics:      a.Metrics,
		Observer:     obs,
		SkipExisting: spec.SkipExisting || a.Config.SkipExisting,
		RunID:        runID,
	})
}

// Snapshot gathers every cell of the hardware catalog.
func (a *App) Snapshot(ctx context.Context) (*leaderboard.Snapshot, error) {
	catalog, err := a.Hardware()
	if err != nil {
		return nil, err
	}
	return leaderboard.Build(ctx, a.Gatherer(), catalog.Cells(), a.Config.GatherParallel, a.Log)
}

// Updater publishes leaderboard tables. parallelism <= 0 uses the configured value.
func (a *App) Updater(parallelism int) (*leaderboard.Updater, error) {
	if parallelism <= 0 {
		parallelism = a.Config.GatherParallel
	}
	return leaderboard.NewUpdater(leaderboard.Options{
		Gatherer:    a.Gatherer(),
		Store:       a.store,
		Repo:        a.Config.LeaderboardRepo,
		Parallelism: parallelism,
		Scraper:     &leaderboard.ScriptScraper{Script: a.Config.ScrapeScript, Dir: a.Config.WorkDir},
		Logger:      a.Log,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
