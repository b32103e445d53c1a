package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"llmperf/internal/models"
	"llmperf/internal/stats"
)

// TopModelsReport is the output of top-models.
type TopModelsReport struct {
	Models        []models.TopModel     `json:"models" yaml:"models"`
	Organizations []models.OrgDownloads `json:"organizations" yaml:"organizations"`
}

func newTopModelsCmd(c *cli) *cobra.Command {
	var (
		n      int
		orgs   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "top-models",
		Short: "List the most downloaded text generation models and their organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			top, err := models.TopModels(ctx, a.Hub, n)
			if err != nil {
				return fmt.Errorf("error fetching top models: %w", err)
			}
			report := TopModelsReport{Models: top, Organizations: models.RankOrganizations(top, orgs)}
			if format == formatJSON || format == formatYAML {
				return writeValue(cmd.OutOrStdout(), format, report)
			}

			modelTable := stats.Table{Columns: []string{"Organization", "Model", "Downloads"}}
			for _, m := range report.Models {
				modelTable.Rows = append(modelTable.Rows, []string{m.Organization, m.ModelName, strconv.FormatInt(m.Downloads, 10)})
			}
			orgTable := stats.Table{Columns: []string{"Organization", "Downloads"}}
			for _, o := range report.Organizations {
				orgTable.Rows = append(orgTable.Rows, []string{o.Organization, strconv.FormatInt(o.Downloads, 10)})
			}
			w := cmd.OutOrStdout()
			if err := writeTable(w, format, modelTable); err != nil {
				return err
			}
			fmt.Fprintln(w)
			return writeTable(w, format, orgTable)
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 100, "Number of models to fetch")
	cmd.Flags().IntVar(&orgs, "organizations", 10, "Number of organizations to rank")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: markdown, csv, json or yaml")
	return cmd
}
