package main

import (
	"github.com/spf13/cobra"

	"llmperf/internal/leaderboard"
	"llmperf/internal/utils"
)

func newStatusCmd(c *cli) *cobra.Command {
	var (
		table  string
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the dashboard tables: cell status, benchmarks, machine and configuration stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Snapshot(ctx)
			if err != nil {
				return err
			}
			t, err := snap.Table(table)
			if err != nil {
				return err
			}
			if output != "" {
				return utils.SaveMarkdown(output, "LLM Performance Dashboard: "+table, t.Columns, t.Rows)
			}
			return writeTable(cmd.OutOrStdout(), format, t)
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", leaderboard.TableStatus, "Table: status, benchmarks, machines or configurations")
	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "Output format: markdown, csv, json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write a markdown report to this file instead of stdout")
	return cmd
}
