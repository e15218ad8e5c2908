package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/game"
)

// simOptions are the simulation flags shared by run and serve.
type simOptions struct {
	Seed      int64
	OutputDir string
	LogStats  bool
	Workers   int
}

func (o *simOptions) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.Seed, "seed", 0, "RNG seed (0 = time-based)")
	cmd.Flags().StringVar(&o.OutputDir, "output-dir", "", "output directory for CSV logs, market log, history and config snapshot")
	cmd.Flags().BoolVar(&o.LogStats, "log-stats", false, "output window stats via slog")
	cmd.Flags().IntVar(&o.Workers, "workers", 0, "row workers (0 = GOMAXPROCS)")
}

func (o *simOptions) game() game.Options {
	return game.Options{
		Seed:      o.Seed,
		OutputDir: o.OutputDir,
		LogStats:  o.LogStats,
		Workers:   o.Workers,
	}
}

func newRunCommand() *cobra.Command {
	var (
		opts     simOptions
		maxTicks uint64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Run the simulation without a viewer, ticking as fast as possible.

Example:
  evonomics run --max-ticks 100000 --seed 42 --output-dir out/ --log-stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runHeadless(ctx, config.Cfg(), opts.game(), maxTicks)
		},
	}
	opts.register(cmd)
	cmd.Flags().Uint64Var(&maxTicks, "max-ticks", 0, "stop after N ticks (0 = unlimited)")

	return cmd
}

func runHeadless(ctx context.Context, cfg *config.Config, opts game.Options, maxTicks uint64) (err error) {
	sim, err := game.NewSimulation(cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sim.Close())
	}()

	slog.Info("starting headless simulation",
		"run_id", sim.RunID(),
		"seed", sim.Seed(),
		"max_ticks", maxTicks,
	)

	for maxTicks == 0 || sim.CurrentTick() < maxTicks {
		if ctx.Err() != nil {
			slog.Info("interrupted", "tick", sim.CurrentTick())
			return nil
		}
		if _, err := sim.Tick(); err != nil {
			return err
		}
	}

	slog.Info("max ticks reached", "tick", sim.CurrentTick())
	sim.LogSummary()
	return nil
}
