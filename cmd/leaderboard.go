package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(c *cli) *cobra.Command {
	var (
		skipLLM     bool
		parallelism int
		format      string
	)
	cmd := &cobra.Command{
		Use:   "update-leaderboard",
		Short: "Scrape the open LLM leaderboard and republish every per-cell perf table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireUpload(); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			catalog, err := a.Hardware()
			if err != nil {
				return err
			}
			updater, err := a.Updater(parallelism)
			if err != nil {
				return err
			}
			report, err := updater.Update(ctx, catalog.Cells(), skipLLM)
			if err != nil {
				return err
			}
			if format != formatText {
				return writeValue(cmd.OutOrStdout(), format, report)
			}
			w := cmd.OutOrStdout()
			for _, name := range report.Uploaded {
				fmt.Fprintf(w, "Uploaded %s to %s\n", name, c.cfg.LeaderboardRepo)
			}
			for _, cell := range report.Missing {
				fmt.Fprintf(w, "Dataset not found for:\n  • Backend: %s\n  • Subset: %s\n  • Machine: %s\n  • Hardware Type: %s\n",
					cell.Backend, cell.Subset, cell.Machine, cell.Hardware)
			}
			for _, cell := range report.Failed {
				fmt.Fprintf(w, "Dataset exists: %s but could not be processed\n", cell.Namespace(c.cfg.Organization))
			}
			for _, cell := range report.Empty {
				fmt.Fprintf(w, "Dataset exists: %s but holds no benchmarks\n", cell.Namespace(c.cfg.Organization))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm-df", false, "Do not run the scraper")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Cells gathered concurrently (overrides GATHER_PARALLELISM)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json or yaml (default: text)")
	return cmd
}
