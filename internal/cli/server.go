package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dexfoundry/feesplitd/internal/config"
	"github.com/dexfoundry/feesplitd/internal/di"
)

// serverCmd represents the server command (default action).
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the fee distribution daemon",
	Long: `Start feesplitd, which provides:
- JSON-RPC API for fee submission, claims and administration
- WebSocket stream of distributions, burns and claims
- Prometheus metrics and health endpoints
- Scheduled rate refreshes, burn attempts and ledger snapshots

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Run the server when invoked with no subcommand.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	container := di.New()
	provider := di.NewProvider(container, cfg, clockwork.NewRealClock(), log)
	if err := provider.RegisterAll(); err != nil {
		return err
	}
	if err := provider.WireEvents(); err != nil {
		return err
	}

	srv, err := provider.RPCServer()
	if err != nil {
		return err
	}
	sched, err := provider.Scheduler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	log.WithField("addr", cfg.RPC.Addr).Info("feesplitd starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	err = g.Wait()

	sched.Stop()

	if archive, aerr := provider.History(); aerr == nil && archive != nil {
		if cerr := archive.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing history archive")
		}
	}
	if db, derr := provider.Database(); derr == nil && db != nil {
		if cerr := db.Close(); cerr != nil {
			log.WithError(cerr).Warn("closing snapshot database")
		}
	}

	log.Info("feesplitd stopped")
	return err
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logrus.NewEntry(logger), nil
}
