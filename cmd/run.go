package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llmperf/internal/app"
	"llmperf/internal/results"
	"llmperf/internal/runners"
	"llmperf/internal/utils"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		spec       app.RunSpec
		dryRun     bool
		noProgress bool
		format     string
	)
	cmd := &cobra.Command{
		Use:   "run-benchmark",
		Short: "Run the benchmark matrix of one hardware/backend variant and upload every artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return listJobs(cmd, c, spec, format, false)
			}
			if err := c.requireUpload(); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runID := uuid.NewString()
			var obs runners.Observer
			if format == formatText && !noProgress {
				obs = newProgressObserver(c.errOut)
			}
			r, err := a.NewRunner(ctx, spec, runID, obs)
			if err != nil {
				return err
			}

			a.Metrics.RunStarted()
			start := time.Now()
			outcomes, runErr := r.RunAll(ctx)
			a.Metrics.RunFinished()

			summary := RunSummary{
				RunID:     runID,
				Cell:      r.Cell(),
				Namespace: r.Namespace(),
				Models:    r.Models(),
				Counts:    runners.Summary(outcomes),
				Outcomes:  outcomes,
				Duration:  time.Since(start),
			}
			if err := writeRunSummary(cmd, format, summary); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("run %s stopped after %d jobs: %w", runID, len(outcomes), runErr)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&spec.Hardware, "hardware", "", "Hardware to run on: cpu, cuda or rocm")
	flags.StringVar(&spec.Backend, "backend", "", "Backend to use: pytorch, onnxruntime or openvino")
	flags.StringVar(&spec.Subset, "subset", "", "Weights subset (overrides SUBSET)")
	flags.StringVar(&spec.Machine, "machine", "", "Machine name (overrides MACHINE)")
	flags.StringSliceVar(&spec.Models, "models", nil, "Models to benchmark (overrides MODELS)")
	flags.BoolVar(&spec.SkipExisting, "skip-existing", false, "Reuse artifacts already present in the namespace")
	flags.BoolVar(&dryRun, "dry-run", false, "List the matrix without running it")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	flags.StringVarP(&format, "format", "f", "", "Output format: json or yaml (default: table)")
	cmd.MarkFlagRequired("hardware")
	cmd.MarkFlagRequired("backend")
	return cmd
}

func writeRunSummary(cmd *cobra.Command, format string, s RunSummary) error {
	if format != formatText {
		return writeValue(cmd.OutOrStdout(), format, s)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s on %s (%d models)\n\n", s.RunID, s.Namespace, len(s.Models))

	rows := make([][]string, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		rows = append(rows, []string{
			o.Job.Model,
			o.Job.Experiment(),
			string(o.Status),
			o.Duration.Round(time.Second).String(),
			utils.Truncate(o.Traceback, 60),
		})
	}
	if err := utils.WriteMarkdownTable(w, []string{"Model", "Experiment", "Status", "Duration", "Traceback"}, rows); err != nil {
		return err
	}

	writeCounts(w, s.Counts)
	fmt.Fprintf(w, "Finished in %s\n", s.Duration.Round(time.Second))
	return nil
}

// writeCounts prints one "status: n" line per status in name order.
func writeCounts(w io.Writer, counts map[results.Status]int) {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	fmt.Fprintln(w)
	for _, status := range statuses {
		fmt.Fprintf(w, "%s: %d\n", status, counts[results.Status(status)])
	}
}
