// Command cyclectl is the operator CLI for review cycles: it imports the
// organization, generates cycles and inspects pair linking against the same
// store the server uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/config"
	"github.com/okian/cadence/internal/domain/scoring"
	"github.com/okian/cadence/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run executes one command line and releases the store afterwards.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	cmd := c.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	defer c.close()
	return cmd.ExecuteContext(ctx)
}

// cli carries the service shared by subcommands.
type cli struct {
	storePath string
	logLevel  string
	svc       *app.Service
}

func (c *cli) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cyclectl",
		Short:         "Operate review cycles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.start(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&c.storePath, "store", "", "SQLite store path (default from CADENCE_STORE_PATH)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		c.generateCmd(),
		c.auditCmd(),
		c.pairingsCmd(),
		c.closeCmd(),
		c.importParticipantsCmd(),
		c.importLegacyCmd(),
	)
	return cmd
}

// start loads configuration, lets flags override it and starts the service.
func (c *cli) start(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if c.storePath != "" {
		cfg.StorePath = c.storePath
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := logger.InitWith(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Named("cyclectl")
	if cfg.StorePath == "" {
		log.Warn(ctx, "no store path configured; changes are kept in memory and discarded on exit")
	}

	c.svc = app.New(
		app.WithLogger(log),
		app.WithStorePath(cfg.StorePath),
		app.WithBatchLimit(cfg.BatchLimit),
		app.WithScoring(
			scoring.WithRange(cfg.ScoreMin, cfg.ScoreMax),
			scoring.WithThresholds(cfg.LowMax, cfg.MidMax),
			scoring.WithLeadershipWeight(cfg.LeadershipWeight),
		),
	)
	return c.svc.Start(ctx)
}

func (c *cli) close() {
	if c.svc != nil {
		c.svc.Stop()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
