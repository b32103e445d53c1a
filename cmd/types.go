package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"llmperf/internal/app"
	"llmperf/internal/config"
	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/results"
	"llmperf/internal/runners"
)

// cli is the state shared by every command.
type cli struct {
	envFile string
	out     io.Writer
	errOut  io.Writer
	newApp  func(ctx context.Context, cfg *config.Config, log *logger.Logger, opts app.Options) (*app.App, error)
	appOpts app.Options

	cfg *config.Config
	log *logger.Logger
}

func (c *cli) openApp(ctx context.Context) (*app.App, error) {
	return c.newApp(ctx, c.cfg, c.log, c.appOpts)
}

// requireUpload fails when the configuration cannot write artifacts.
func (c *cli) requireUpload() error {
	if problems := c.cfg.ValidateForUpload(); len(problems) > 0 {
		return fmt.Errorf("cannot upload results:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// RunSummary is the result of run-benchmark.
type RunSummary struct {
	RunID     string                 `json:"run_id" yaml:"run-id"`
	Cell      hardware.Cell          `json:"cell" yaml:"cell"`
	Namespace string                 `json:"namespace" yaml:"namespace"`
	Models    []string               `json:"models" yaml:"models"`
	Counts    map[results.Status]int `json:"counts" yaml:"counts"`
	Outcomes  []runners.Outcome      `json:"outcomes" yaml:"outcomes"`
	Duration  time.Duration          `json:"duration" yaml:"duration"`
}

// JobListing is one row of list-jobs.
type JobListing struct {
	Name      string `json:"name" yaml:"name"`
	Model     string `json:"model" yaml:"model"`
	Weights   string `json:"weights" yaml:"weights"`
	Attention string `json:"attention" yaml:"attention"`
	Supported bool   `json:"supported" yaml:"supported"`
	// Status is set by --against-remote.
	Status results.Status `json:"status,omitempty" yaml:"status,omitempty"`
}
