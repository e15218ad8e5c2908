package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/game"
	"github.com/pthm-cable/evonomics/observer"
)

func newServeCommand() *cobra.Command {
	var (
		opts simOptions
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation behind the websocket observer",
		Long: `Run the simulation on a driver goroutine and stream views and market
rounds to websocket clients on /ws. Clients may send tick and set commands.

Example:
  evonomics serve --addr :8080 --output-dir out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Cfg()
			if addr != "" {
				cfg.Observer.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.game())
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (empty = config observer.addr)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, opts game.Options) (err error) {
	sim, err := game.NewSimulation(cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sim.Close())
	}()

	driver := game.NewDriver(sim, cfg.Driver.Inbound, cfg.Driver.Outbound)

	var history observer.HistorySource
	if h := sim.History(); h != nil {
		history = h
	}
	obs, err := observer.NewServer(driver, history, observer.Options{
		ClientBuffer:   cfg.Observer.ClientBuffer,
		AllowedOrigins: cfg.Observer.AllowedOrigins,
	})
	if err != nil {
		return err
	}
	defer obs.Close()

	srv := &http.Server{
		Addr:              cfg.Observer.Addr,
		Handler:           obs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := driver.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		obs.Pump(ctx, driver.Outputs())
		return nil
	})

	// Tick requests at the configured rate; dropped when the driver lags.
	g.Go(func() error {
		if cfg.Derived.TickInterval <= 0 {
			<-ctx.Done()
			return nil
		}
		ticker := time.NewTicker(time.Duration(cfg.Derived.TickInterval * float64(time.Second)))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				driver.Send(game.TickCommand{Count: max(cfg.Observer.TicksPerFrame, 1)})
			}
		}
	})

	g.Go(func() error {
		slog.Info("observer listening", "addr", srv.Addr, "run_id", sim.RunID(), "seed", sim.Seed())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	sim.LogSummary()
	return err
}
