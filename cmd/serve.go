package main

import (
	"github.com/spf13/cobra"

	cmdserver "llmperf/cmd/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and run API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				c.cfg.Port = port
			}
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return cmdserver.Run(ctx, a)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}
