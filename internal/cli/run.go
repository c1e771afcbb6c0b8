package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorreplay/internal/monitor"
	"github.com/roach88/sensorreplay/internal/regmap"
	"github.com/roach88/sensorreplay/internal/replay"
	"github.com/roach88/sensorreplay/internal/sink"
	"github.com/roach88/sensorreplay/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator replay.RunIDGenerator

	// Bank receives committed values. If nil, a fresh bank is created.
	Bank *regmap.Bank
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the replay daemon",
		Long: `Start replaying historical readings into the register image.

The daemon loads the channel directory, connects to the datastore (retrying
until it answers), pages readings in load_rate windows and commits each one
when its scaled delay has elapsed. It runs until interrupted.

Example:
  sensorreplay run --config ./replay.yaml
  sensorreplay run --config ./replay.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the replay config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runReplay(opts *RunOptions, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose, false)

	slog.Info("loading config", "path", opts.ConfigPath)
	st, _, err := loadSetup(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	cfg := st.Config
	slog.Info("channel directory loaded", "channels", st.Directory.Len())

	format, err := regmap.ParseFormat(cfg.RegisterFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid register format", err)
	}

	runIDs := opts.RunIDGenerator
	if runIDs == nil {
		runIDs = replay.UUIDv7Generator{}
	}
	source := store.New(cfg.DSN())
	eng := replay.New(cfg, st.Directory, source, replay.WithRunID(runIDs))

	bank := opts.Bank
	if bank == nil {
		bank = regmap.NewBank()
	}
	eng.AddObserver(bank.Observer(format))

	if cfg.KafkaEnabled() {
		k := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, eng.RunID())
		defer func() {
			if closeErr := k.Close(); closeErr != nil {
				slog.Error("error closing kafka sink", "error", closeErr)
			}
		}()
		eng.AddObserver(k)
		slog.Info("kafka sink enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	var mon *monitor.Server
	if cfg.MonitorAddr != "" {
		mon = monitor.New(cfg.MonitorAddr, eng)
	}

	if err := eng.Open(); err != nil {
		return WrapExitError(ExitCommandError, "failed to open register store", err)
	}
	slog.Info("register image ready",
		"port", cfg.Port,
		"format", cfg.RegisterFormat,
		"endpoints", len(bank.Endpoints()),
	)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	monDone := make(chan struct{})
	if mon != nil {
		go func() {
			defer close(monDone)
			if err := mon.Run(ctx); err != nil {
				slog.Error("monitor server failed", "addr", cfg.MonitorAddr, "error", err)
			}
		}()
	} else {
		close(monDone)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Replay %s started. Committing readings...\n", eng.RunID())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	runErr := eng.Run(ctx)
	cancel()
	<-monDone

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "replay error", runErr)
	}

	stats := eng.Stats().Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Replay stopped: %d rows loaded, %d bootstrapped, %d released, %d pending\n",
		stats.RowsLoaded, stats.Bootstraps, stats.Released, eng.Pending().Len())
	if loaderErr := eng.LoaderErr(); loaderErr != nil && !errors.Is(loaderErr, context.Canceled) {
		fmt.Fprintf(cmd.OutOrStdout(), "Loader stopped early: %v\n", loaderErr)
	}
	return nil
}
