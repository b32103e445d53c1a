package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"llmperf/internal/app"
	"llmperf/internal/results"
	"llmperf/internal/runners"
	"llmperf/internal/stats"
)

func newListCmd(c *cli) *cobra.Command {
	var (
		spec          app.RunSpec
		format        string
		againstRemote bool
	)
	cmd := &cobra.Command{
		Use:   "list-jobs",
		Short: "Print the benchmark matrix of one variant without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd, c, spec, format, againstRemote)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&spec.Hardware, "hardware", "", "Hardware: cpu, cuda or rocm")
	flags.StringVar(&spec.Backend, "backend", "", "Backend: pytorch, onnxruntime or openvino")
	flags.StringVar(&spec.Subset, "subset", "", "Weights subset (overrides SUBSET)")
	flags.StringVar(&spec.Machine, "machine", "", "Machine name (overrides MACHINE)")
	flags.StringSliceVar(&spec.Models, "models", nil, "Models to include (overrides MODELS)")
	flags.StringVarP(&format, "format", "f", "", "Output format: markdown, csv, json or yaml")
	flags.BoolVar(&againstRemote, "against-remote", false, "Compare the matrix with the artifacts already in the cell namespace")
	cmd.MarkFlagRequired("hardware")
	cmd.MarkFlagRequired("backend")
	return cmd
}

func listJobs(cmd *cobra.Command, c *cli, spec app.RunSpec, format string, againstRemote bool) error {
	ctx := cmd.Context()
	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if spec.Machine == "" && c.cfg.Machine == "" {
		spec.Machine = "local"
	}
	r, err := a.NewRunner(ctx, spec, "", nil)
	if err != nil {
		return err
	}
	entries, err := r.Entries()
	if err != nil {
		return err
	}

	var coverage []runners.Outcome
	if againstRemote {
		records, err := a.Gatherer().Gather(ctx, r.Cell())
		var missing *results.NamespaceNotFoundError
		switch {
		case errors.As(err, &missing):
			a.Log.Warn("Namespace %s does not exist, every supported job is missing", missing.Namespace)
		case err != nil:
			return err
		}
		coverage = runners.Reconcile(r.Cell(), entries, records)
	}

	listing := make([]JobListing, 0, len(entries))
	for i, e := range entries {
		l := JobListing{
			Name:      e.Job.Name(),
			Model:     e.Job.Model,
			Weights:   e.Job.Weights.Name,
			Attention: string(e.Job.Attention),
			Supported: e.Supported,
		}
		if coverage != nil {
			l.Status = coverage[i].Status
		}
		listing = append(listing, l)
	}
	if format == formatJSON || format == formatYAML {
		return writeValue(cmd.OutOrStdout(), format, listing)
	}

	t := stats.Table{Columns: []string{"Job", "Weights", "Attention", "Supported"}}
	if coverage != nil {
		t.Columns = append(t.Columns, "Status")
	}
	supported := 0
	for _, l := range listing {
		mark := "no"
		if l.Supported {
			mark = "yes"
			supported++
		}
		row := []string{l.Name, l.Weights, l.Attention, mark}
		if coverage != nil {
			row = append(row, string(l.Status))
		}
		t.Rows = append(t.Rows, row)
	}
	if err := writeTable(cmd.OutOrStdout(), format, t); err != nil {
		return err
	}
	if format == formatText || format == formatMarkdown {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d combinations supported for %s\n", supported, len(listing), r.Variant().Name())
		if coverage != nil {
			writeCounts(cmd.OutOrStdout(), runners.Summary(coverage))
		}
	}
	return nil
}
