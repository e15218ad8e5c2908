// Package game drives the simulation: the tick pipeline over the grid and the
// market, the row worker pool, and the command/output queues used by front ends.
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/evonomics/brain"
	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/market"
	"github.com/pthm-cable/evonomics/telemetry"
	"github.com/pthm-cable/evonomics/world"
)

// ErrConservation reports that cell money plus the reserve no longer equals the
// money supply. The simulation cannot continue after it.
var ErrConservation = errors.New("money not conserved")

// Options configures a Simulation beyond the config file.
type Options struct {
	Seed      int64  // 0 = time-based
	RunID     string // empty = new UUID
	OutputDir string // CSV, market log and history; empty disables file output
	LogStats  bool   // log window stats and bookmarks via slog
	Workers   int    // row workers, 0 = GOMAXPROCS

	// StatsCallback receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation owns the grid, the market and the telemetry sinks. It is not safe
// for concurrent use; front ends go through a Driver.
type Simulation struct {
	cfg    *config.Config
	grid   *world.Grid
	engine *market.Engine
	params world.Params
	rng    *rand.Rand
	seed   int64
	tick   uint64
	supply uint64

	parallel          *parallelState
	parallelThreshold int
	orders            []market.Order
	lastEvents        world.Events

	// Telemetry
	runID         string
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	bookmarks     *telemetry.BookmarkDetector
	outputManager *telemetry.OutputManager
	marketLog     *telemetry.MarketLog
	history       *telemetry.History
}

// NewSimulation generates the world and opens the telemetry sinks.
func NewSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	rng := rand.New(rand.NewSource(seed))
	w := cfg.World
	grid := world.Generate(rng, w.Width, w.Height, w.Openness, w.CornucopiaDensity)
	supply := uint64(grid.Len()) * w.ReserveMultiplier

	s := &Simulation{
		cfg:  cfg,
		grid: grid,
		engine: market.NewEngine(market.Options{
			Reserve:         supply,
			ReserveFallback: cfg.Market.ReserveFallback,
			MaxResting:      cfg.Market.MaxResting,
		}),
		params: world.Params{
			Rates:       ratesFromConfig(cfg.Rates),
			MovePenalty: cfg.Energy.MovePenalty,
			SpawnFood:   cfg.Energy.SpawnFood,
			Genesis: brain.Params{
				LengthScale:      cfg.Genome.InitialLengthScale,
				EntriesScale:     cfg.Genome.InitialEntriesScale,
				MaxTradeQuantity: cfg.Genome.MaxTradeQuantity,
				MaxTradeRate:     cfg.Genome.MaxTradeRate,
			},
		},
		rng:               rng,
		seed:              seed,
		supply:            supply,
		parallel:          newParallelState(w.Height, opts.Workers),
		parallelThreshold: cfg.Driver.ParallelThreshold,

		runID:         runID,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		collector:     telemetry.NewCollector(runID, cfg.Telemetry.StatsWindow),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarks:     telemetry.NewBookmarkDetector(10),
	}

	if err := s.openOutputs(opts.OutputDir); err != nil {
		s.Close()
		return nil, err
	}

	s.logWorld("world generated")
	return s, nil
}

func (s *Simulation) openOutputs(dir string) error {
	if dir == "" {
		return nil
	}

	om, err := telemetry.NewOutputManager(dir, s.runID)
	if err != nil {
		return err
	}
	s.outputManager = om
	if err := om.WriteConfig(s.cfg); err != nil {
		return err
	}

	if s.marketLog, err = telemetry.NewMarketLog(dir); err != nil {
		return err
	}

	s.history, err = telemetry.OpenHistory(filepath.Join(dir, telemetry.HistoryName), s.runID, s.seed, s.cfg.Telemetry.HistoryBuffer)
	return err
}

func ratesFromConfig(r config.RatesConfig) world.Rates {
	return world.Rates{
		SpawnChance:       r.SpawnChance,
		MutationChance:    r.MutationChance,
		GeneralFoodChance: r.GeneralFoodChance,
		CornucopiaBounty:  r.CornucopiaBounty,
		CornucopiaChance:  r.CornucopiaChance,
	}
}

// Tick advances the simulation by one tick: the step pass, the update pass,
// then the market. The returned error wraps ErrConservation when money leaked.
func (s *Simulation) Tick() (market.Stats, error) {
	s.perfCollector.StartTick()

	s.perfCollector.StartPhase(telemetry.PhaseStep)
	s.runPass(passStep)

	s.perfCollector.StartPhase(telemetry.PhaseUpdate)
	s.runPass(passUpdate)
	s.grid.Swap()
	s.tick++
	s.lastEvents = s.parallel.rowEvents()

	s.perfCollector.StartPhase(telemetry.PhaseMarket)
	if err := s.checkConservation("update"); err != nil {
		return market.Stats{}, err
	}
	s.orders = s.orders[:0]
	s.grid.TakeTrades(func(cell int, t world.TradeIntent) {
		s.orders = append(s.orders, market.Order{
			Cell:     cell,
			Quantity: t.Quantity,
			Rate:     t.Rate,
			Occupant: s.grid.Occupant(cell),
		})
	})
	ms := s.engine.Clear(s.rng, s.grid, s.orders)
	s.engine.Deposit(s.grid.SweepWalls())
	ms.Reserve = s.engine.Reserve()
	if err := s.checkConservation("market"); err != nil {
		return ms, err
	}

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.recordTick(ms)
	s.perfCollector.EndTick()

	return ms, nil
}

func (s *Simulation) checkConservation(phase string) error {
	cells := s.grid.TotalMoney()
	reserve := s.engine.Reserve()
	if cells+reserve != s.supply {
		return fmt.Errorf("tick %d after %s: cells %d + reserve %d != supply %d: %w",
			s.tick, phase, cells, reserve, s.supply, ErrConservation)
	}
	return nil
}

// SetRates replaces the live rates. Probabilities outside [0, 1] are rejected.
func (s *Simulation) SetRates(r world.Rates) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.params.Rates = r
	return nil
}

// Rates returns the live rates.
func (s *Simulation) Rates() world.Rates { return s.params.Rates }

// CurrentTick returns the number of completed ticks.
func (s *Simulation) CurrentTick() uint64 { return s.tick }

// RunID identifies this run in output files and the history.
func (s *Simulation) RunID() string { return s.runID }

// Seed returns the seed the world was generated from.
func (s *Simulation) Seed() int64 { return s.seed }

// Grid exposes the grid between ticks.
func (s *Simulation) Grid() *world.Grid { return s.grid }

// Reserve returns the money held by the market reserve.
func (s *Simulation) Reserve() uint64 { return s.engine.Reserve() }

// MoneySupply returns the conserved amount of money.
func (s *Simulation) MoneySupply() uint64 { return s.supply }

// LastEvents returns the cell events of the most recent tick.
func (s *Simulation) LastEvents() world.Events { return s.lastEvents }

// History returns the market history store, or nil without file output.
func (s *Simulation) History() *telemetry.History { return s.history }

// PerfStats returns tick timing over the perf window.
func (s *Simulation) PerfStats() telemetry.PerfStats { return s.perfCollector.Stats() }

// RecordFrame marks a published view for the perf collector.
func (s *Simulation) RecordFrame() { s.perfCollector.RecordFrame() }

// Close stops the workers and flushes every sink.
func (s *Simulation) Close() error {
	s.stopParallelWorkers()
	return errors.Join(
		s.marketLog.Close(),
		s.history.Close(),
		s.outputManager.Close(),
	)
}
