package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/reps/internal/config"
	"example.com/reps/internal/events"
	"example.com/reps/internal/warehouse"
	"example.com/reps/internal/warehouse/postgres"
	"example.com/reps/internal/warehouse/sqlite"
)

// errValidationFailed makes the process exit 1 without repeating the report.
var errValidationFailed = errors.New("data validation failed")

type app struct {
	cfg     config.Config
	verbose bool
	logger  *zap.Logger
	out     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(config.Load(), os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		// The bare sentinel means the report is already on stdout; joined rule errors still print.
		if err != errValidationFailed { //nolint:errorlint
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, out io.Writer) *cobra.Command {
	a := &app{cfg: cfg, out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "reps",
		Short:         "REPS wearable IMU warehouse",
		Long:          "Ingest raw accelerometer, gyroscope and exercise-label recordings into a session-scoped warehouse and check it for consistency.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			logger, err := buildLogger(a.cfg.LogLevel, a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.cfg.Driver, "driver", cfg.Driver, "warehouse driver (sqlite|postgres)")
	root.PersistentFlags().StringVar(&a.cfg.WarehousePath, "warehouse", cfg.WarehousePath, "sqlite warehouse file")

	root.AddCommand(
		a.ingestCmd(),
		a.validateCmd(),
		a.serveCmd(),
		a.exercisesCmd(),
	)
	return root
}

func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func (a *app) openStore(ctx context.Context) (warehouse.Store, error) {
	switch a.cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, a.cfg.PostgresURL, postgres.WithLogger(a.logger.Named("warehouse")))
	default:
		return sqlite.Open(a.cfg.WarehousePath, sqlite.WithLogger(a.logger.Named("warehouse")))
	}
}

func (a *app) publisher() events.Publisher {
	return events.New(a.cfg.KafkaBrokers, events.Topics{
		Ingest:     a.cfg.IngestTopic,
		Validation: a.cfg.ValidationTopic,
	})
}
