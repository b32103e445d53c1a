// Package leaderboard publishes consolidated benchmark tables and builds the
// dashboard snapshot.
package leaderboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/results"
	"llmperf/internal/storage"
)

// LLMDFName is the scraped open LLM leaderboard table in the leaderboard repo.
const LLMDFName = "llm-df.csv"

// Report summarizes one update.
type Report struct {
	LLMDF    bool            `json:"llm_df"`
	Uploaded []string        `json:"uploaded"`
	Missing  []hardware.Cell `json:"missing,omitempty"`
	Empty    []hardware.Cell `json:"empty,omitempty"`
	Failed   []hardware.Cell `json:"failed,omitempty"`
}

// Options configures an Updater.
type Options struct {
	Gatherer    *results.Gatherer
	Store       storage.Store
	Repo        string
	Parallelism int
	Scraper     Scraper
	Logger      *logger.Logger
}

// Updater refreshes the per cell perf tables and the scraped LLM table.
type Updater struct {
	gatherer    *results.Gatherer
	store       storage.Store
	repo        string
	parallelism int
	scraper     Scraper
	log         *logger.Logger
}

// NewUpdater validates the options.
func NewUpdater(opts Options) (*Updater, error) {
	if opts.Gatherer == nil {
		return nil, errors.New("updater requires a gatherer")
	}
	if opts.Store == nil {
		return nil, errors.New("updater requires a store")
	}
	if opts.Repo == "" {
		return nil, errors.New("updater requires a leaderboard repo")
	}
	u := &Updater{
		gatherer:    opts.Gatherer,
		store:       opts.Store,
		repo:        opts.Repo,
		parallelism: opts.Parallelism,
		scraper:     opts.Scraper,
		log:         opts.Logger,
	}
	if u.log == nil {
		u.log = logger.Discard()
	}
	return u, nil
}

// Update scrapes the LLM table unless skipLLM is set, then rebuilds every
// perf table.
func (u *Updater) Update(ctx context.Context, cells []hardware.Cell, skipLLM bool) (*Report, error) {
	report := &Report{}
	if !skipLLM {
		if err := u.UpdateLLMDF(ctx); err != nil {
			return nil, err
		}
		report.LLMDF = true
	}
	perf, err := u.UpdatePerfDFs(ctx, cells)
	if err != nil {
		return nil, err
	}
	perf.LLMDF = report.LLMDF
	return perf, nil
}

// UpdateLLMDF runs the scraper and uploads its table verbatim.
func (u *Updater) UpdateLLMDF(ctx context.Context) error {
	if u.scraper == nil {
		return errors.New("no leaderboard scraper configured")
	}
	data, err := u.scraper.Scrape(ctx)
	if err != nil {
		return fmt.Errorf("failed to scrape LLM leaderboard: %w", err)
	}
	if err := u.upload(ctx, LLMDFName, data); err != nil {
		return err
	}
	u.log.Info("📤 Uploaded %s to %s", LLMDFName, u.repo)
	return nil
}

// UpdatePerfDFs gathers every cell and uploads one CSV per cell with
// records. Missing namespaces and failing cells are reported, never fatal.
func (u *Updater) UpdatePerfDFs(ctx context.Context, cells []hardware.Cell) (*Report, error) {
	gathered, err := results.GatherAll(ctx, u.gatherer, cells, u.parallelism, u.log)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, res := range gathered {
		lc := u.log.WithContext(&logger.LogContext{
			Backend:   res.Cell.Backend,
			Hardware:  res.Cell.Hardware,
			Subset:    res.Cell.Subset,
			Machine:   res.Cell.Machine,
			Operation: "update-leaderboard",
		})
		switch {
		case res.Missing():
			report.Missing = append(report.Missing, res.Cell)
			continue
		case res.Err != nil:
			report.Failed = append(report.Failed, res.Cell)
			continue
		case len(res.Records) == 0:
			lc.Warn("⚠️ Dataset %s has no benchmarks, nothing to upload", u.gatherer.Namespace(res.Cell))
			report.Empty = append(report.Empty, res.Cell)
			continue
		}

		var buf bytes.Buffer
		if err := results.WriteCSV(&buf, res.Records); err != nil {
			lc.Error("❌ Failed to render %s: %v", res.Cell.PerfCSVName(), err)
			report.Failed = append(report.Failed, res.Cell)
			continue
		}
		name := res.Cell.PerfCSVName()
		if err := u.upload(ctx, name, buf.Bytes()); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			lc.Error("❌ %v", err)
			report.Failed = append(report.Failed, res.Cell)
			continue
		}
		lc.Info("📤 Uploaded %s to %s", name, u.repo)
		report.Uploaded = append(report.Uploaded, name)
	}
	return report, nil
}

func (u *Updater) upload(ctx context.Context, name string, data []byte) error {
	if err := u.store.Ensure(ctx, u.repo); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", u.repo, err)
	}
	if err := u.store.Put(ctx, u.repo, name, data); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", name, u.repo, err)
	}
	return nil
}
