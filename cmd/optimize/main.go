// Command optimize searches evonomics rates with CMA-ES for long-lived,
// actively trading populations.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/evonomics/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// evalRecord is one row of optimize_log.csv. Fields follow ParamVector order.
type evalRecord struct {
	Eval              int     `csv:"eval"`
	Fitness           float64 `csv:"fitness"`
	Quality           float64 `csv:"quality"`
	SpawnChance       float64 `csv:"spawn_chance"`
	MutationChance    float64 `csv:"mutation_chance"`
	GeneralFoodChance float64 `csv:"general_food_chance"`
	CornucopiaBounty  float64 `csv:"cornucopia_bounty"`
	CornucopiaChance  float64 `csv:"cornucopia_chance"`
	MovePenalty       float64 `csv:"move_penalty"`
	SpawnFood         float64 `csv:"spawn_food"`
}

func newEvalRecord(eval int, fitness, quality float64, v []float64) evalRecord {
	return evalRecord{
		Eval: eval, Fitness: fitness, Quality: quality,
		SpawnChance: v[0], MutationChance: v[1], GeneralFoodChance: v[2],
		CornucopiaBounty: v[3], CornucopiaChance: v[4],
		MovePenalty: v[5], SpawnFood: v[6],
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Uint64("max-ticks", 200000, "Maximum simulation duration in ticks (cap)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *outputDir == "" {
		fatal("missing flag", fmt.Errorf("--output is required"))
	}
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fatal("failed to create output directory", err)
	}

	if err := config.Init(*configPath); err != nil {
		fatal("failed to load config", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, *maxTicks, evalSeeds, baseCfg)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation; seeds run in parallel
	}

	popSize := *population
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		fatal("failed to create log file", err)
	}
	defer logFile.Close()
	headerWritten := false

	evalCount := 0
	bestFitness := 0.0
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++

			// Clamped values are the ones actually simulated
			clamped := params.Clamp(raw)
			if bestParams == nil || fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			rows := []evalRecord{newEvalRecord(evalCount, fitness, evaluator.LastQuality(), clamped)}
			if headerWritten {
				err = gocsv.MarshalWithoutHeaders(rows, logFile)
			} else {
				err = gocsv.Marshal(rows, logFile)
				headerWritten = true
			}
			if err != nil {
				slog.Error("failed to write eval log", "error", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

			fmt.Printf("Eval %d/%d: fitness=%.0f quality=%.2f (best=%.0f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, evaluator.LastQuality(), bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d\n", *seeds, *maxTicks)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		fatal("no evaluations completed", err)
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.0f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg := *baseCfg
	params.ApplyToConfig(&bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
