package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"llmperf/internal/app"
	"llmperf/internal/config"
	"llmperf/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newCLI(os.Stdout, os.Stderr)).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, errOut: errOut, newApp: app.New}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "llm-perf",
		Short:         "Benchmark language models across hardware and backends and publish the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Flags())
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", ".env", "Path of the .env file to load")
	flags.String("hardware-config", "", "Hardware catalog YAML (overrides HARDWARE_CONFIG)")
	flags.String("store", "", "Artifact store: hub, gcs or local (overrides ARTIFACT_STORE)")
	flags.String("organization", "", "Hub organization owning the namespaces (overrides HUB_ORGANIZATION)")
	flags.String("log-level", "", "Minimum log level (overrides LOG_LEVEL)")
	flags.Bool("log-json", false, "Emit JSON log lines")

	root.AddCommand(
		newRunCmd(c),
		newListCmd(c),
		newLeaderboardCmd(c),
		newStatusCmd(c),
		newTopModelsCmd(c),
		newPatchCmd(c),
		newServeCmd(c),
	)
	return root
}

// setup loads the environment and applies persistent flag overrides.
func (c *cli) setup(flags *pflag.FlagSet) error {
	if c.log == nil {
		opts := logger.Options{Stdout: c.errOut, Stderr: c.errOut, MinLevel: logger.ParseLevel(os.Getenv("LOG_LEVEL"))}
		if level, _ := flags.GetString("log-level"); level != "" {
			opts.MinLevel = logger.ParseLevel(level)
		}
		opts.JSON, _ = flags.GetBool("log-json")
		c.log = logger.New(opts)
	}
	if err := config.LoadDotEnv(c.envFile, c.log); err != nil {
		return err
	}

	cfg := config.FromEnv()
	if v, _ := flags.GetString("hardware-config"); v != "" {
		cfg.HardwareConfig = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.ArtifactStore = strings.ToLower(v)
	}
	if v, _ := flags.GetString("organization"); v != "" {
		cfg.Organization = v
		if os.Getenv("LEADERBOARD_REPO") == "" {
			cfg.LeaderboardRepo = v + "/llm-perf-leaderboard"
		}
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	c.cfg = cfg
	return nil
}
