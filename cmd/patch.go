package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmperf/internal/results"
)

func newPatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "patch-json FILE...",
		Short: "Add stdev_ next to every stdev in local benchmark artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				changed, err := results.PatchFile(path)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintf(cmd.OutOrStdout(), "patched %s\n", path)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "unchanged %s\n", path)
				}
			}
			return nil
		},
	}
}
