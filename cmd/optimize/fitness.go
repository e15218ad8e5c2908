package main

import (
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/game"
	"github.com/pthm-cable/evonomics/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   uint64
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks uint64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// A run counts as extinct once the population stays below minViablePop for
// extinctionGraceWindows consecutive windows after the warmup.
const (
	minViablePop           = 10
	extinctionGraceWindows = 3
	warmupWindows          = 3
)

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTicks uint64                  // ticks before functional extinction (or maxTicks if survived)
	windowStats   []telemetry.WindowStats // collected via StatsCallback each window
}

type seedResult struct {
	fitness float64
	quality float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			quality := computeQuality(result.windowStats)
			results[idx] = seedResult{
				fitness: computeFitness(result.survivalTicks, quality),
				quality: quality,
			}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes a single headless run until functional extinction
// or maxTicks, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, x)

	result := &runResult{}
	below := 0
	extinct := false

	sim, err := game.NewSimulation(&cfg, game.Options{
		Seed:    seed,
		Workers: 1, // seeds already run in parallel
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
			if len(result.windowStats) <= warmupWindows {
				return
			}
			if stats.Agents < minViablePop {
				below++
			} else {
				below = 0
			}
			if below >= extinctionGraceWindows {
				extinct = true
			}
		},
	})
	if err != nil {
		slog.Error("creating simulation", "seed", seed, "error", err)
		return result
	}
	defer sim.Close()

	for sim.CurrentTick() < fe.maxTicks && !extinct {
		if _, err := sim.Tick(); err != nil {
			slog.Error("simulation failed", "seed", seed, "tick", sim.CurrentTick(), "error", err)
			result.survivalTicks = 0
			return result
		}
	}
	result.survivalTicks = sim.CurrentTick()
	return result
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalTicks × (1.0 + quality))
func computeFitness(survivalTicks uint64, quality float64) float64 {
	return -(float64(survivalTicks) * (1.0 + quality))
}

// Quality component weights.
const (
	qualityWeightTrade       = 0.40
	qualityWeightStability   = 0.30
	qualityWeightCirculation = 0.30
)

// computeQuality scores a run in [0, 1]: steady trading, a stable population,
// and money split between cells and the reserve.
func computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= warmupWindows {
		return 0
	}

	var tradeSum, circSum float64
	var count int
	agents := make([]float64, 0, len(windows))

	for _, w := range windows[warmupWindows:] {
		if w.Agents < minViablePop {
			continue
		}
		agents = append(agents, float64(w.Agents))

		ticks := float64(w.WindowEndTick - w.WindowStartTick)
		if ticks > 0 {
			perAgent := float64(w.Trades) / float64(w.Agents) / ticks
			tradeSum += 1 - math.Exp(-perAgent*20)
		}

		if supply := w.CellMoney + w.Reserve; supply > 0 {
			f := float64(w.CellMoney) / float64(supply)
			circSum += math.Exp(-math.Pow((f-0.5)/0.25, 2))
		}
		count++
	}
	if count == 0 {
		return 0
	}

	stability := 0.0
	if len(agents) >= 2 {
		c := cv(agents)
		stability = math.Exp(-c * c)
	}

	quality := qualityWeightTrade*tradeSum/float64(count) +
		qualityWeightStability*stability +
		qualityWeightCirculation*circSum/float64(count)
	return min(max(quality, 0), 1)
}

// cv computes the coefficient of variation (std/mean).
func cv(values []float64) float64 {
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}
