package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	RunID           string `csv:"run_id"`
	WindowStartTick uint64 `csv:"-"`
	WindowEndTick   uint64 `csv:"window_end"`

	// Population at window end
	Agents int `csv:"agents"`

	// Events during window
	Births    int `csv:"births"`
	Deaths    int `csv:"deaths"`
	Merges    int `csv:"merges"`
	Spawns    int `csv:"spawns"`
	Mutations int `csv:"mutations"`
	Moves     int `csv:"moves"`
	Intents   int `csv:"trade_intents"`

	// Market during window
	Trades            int     `csv:"trades"`
	BuyVolume         uint64  `csv:"buy_volume"`
	SellVolume        uint64  `csv:"sell_volume"`
	BoughtFromReserve uint64  `csv:"bought_from_reserve"`
	SoldToReserve     uint64  `csv:"sold_to_reserve"`
	MeanBid           float64 `csv:"mean_bid"` // over ticks with a resting bid
	MeanAsk           float64 `csv:"mean_ask"`
	Reserve           uint64  `csv:"reserve"`

	// Holdings of living agents (sampled at window end)
	FoodMean  float64 `csv:"food_mean"`
	FoodStd   float64 `csv:"food_std"`
	FoodP10   float64 `csv:"food_p10"`
	FoodP50   float64 `csv:"food_p50"`
	FoodP90   float64 `csv:"food_p90"`
	MoneyMean float64 `csv:"money_mean"`
	MoneyStd  float64 `csv:"money_std"`
	MoneyP10  float64 `csv:"money_p10"`
	MoneyP50  float64 `csv:"money_p50"`
	MoneyP90  float64 `csv:"money_p90"`

	// Lineage depth
	GenerationMean float64 `csv:"generation_mean"`
	GenerationMax  float64 `csv:"generation_max"`

	// Money held by cells; plus Reserve this is the fixed supply.
	CellMoney uint64 `csv:"cell_money"`
}

// Percentile returns the empirical p-quantile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Distribution calculates mean, population standard deviation and percentiles.
func Distribution(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Int("agents", s.Agents),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("merges", s.Merges),
		slog.Int("spawns", s.Spawns),
		slog.Int("mutations", s.Mutations),
		slog.Int("moves", s.Moves),
		slog.Int("trade_intents", s.Intents),
		slog.Int("trades", s.Trades),
		slog.Uint64("buy_volume", s.BuyVolume),
		slog.Uint64("sell_volume", s.SellVolume),
		slog.Uint64("bought_from_reserve", s.BoughtFromReserve),
		slog.Uint64("sold_to_reserve", s.SoldToReserve),
		slog.Float64("mean_bid", s.MeanBid),
		slog.Float64("mean_ask", s.MeanAsk),
		slog.Uint64("reserve", s.Reserve),
		slog.Float64("food_mean", s.FoodMean),
		slog.Float64("food_p50", s.FoodP50),
		slog.Float64("money_mean", s.MoneyMean),
		slog.Float64("money_p50", s.MoneyP50),
		slog.Float64("generation_mean", s.GenerationMean),
		slog.Float64("generation_max", s.GenerationMax),
		slog.Uint64("cell_money", s.CellMoney),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"agents", s.Agents,
		"births", s.Births,
		"deaths", s.Deaths,
		"merges", s.Merges,
		"spawns", s.Spawns,
		"mutations", s.Mutations,
		"trades", s.Trades,
		"buy_volume", s.BuyVolume,
		"sell_volume", s.SellVolume,
		"from_reserve", s.BoughtFromReserve,
		"to_reserve", s.SoldToReserve,
		"mean_bid", s.MeanBid,
		"mean_ask", s.MeanAsk,
		"reserve", s.Reserve,
		"food_p50", s.FoodP50,
		"money_p50", s.MoneyP50,
		"generation_max", s.GenerationMax,
	)
}
