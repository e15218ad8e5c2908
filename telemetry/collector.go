// Package telemetry provides windowed ecosystem and market statistics, run output
// files, bookmarks and the market history store.
package telemetry

import (
	"github.com/pthm-cable/evonomics/market"
	"github.com/pthm-cable/evonomics/world"
)

// Collector accumulates per-tick events within windows and produces WindowStats.
type Collector struct {
	runID       string
	windowTicks uint64

	// Current window tracking
	windowStartTick uint64

	// Counters for current window
	events                 world.Events
	trades                 int
	buyVolume, sellVolume  uint64
	fromReserve, toReserve uint64
	bidSum, askSum         float64
	bidTicks, askTicks     int
	reserve                uint64
}

// NewCollector creates a collector flushing every windowTicks ticks.
func NewCollector(runID string, windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		runID:       runID,
		windowTicks: uint64(windowTicks),
	}
}

// RecordTick accumulates one tick's cell events and clearing round.
func (c *Collector) RecordTick(ev world.Events, ms market.Stats) {
	c.events.Add(ev)
	c.trades += ms.Trades
	c.buyVolume += ms.BuyVolume
	c.sellVolume += ms.SellVolume
	c.fromReserve += ms.BoughtFromReserve
	c.toReserve += ms.SoldToReserve
	if ms.LastBid >= 0 {
		c.bidSum += float64(ms.LastBid)
		c.bidTicks++
	}
	if ms.LastAsk >= 0 {
		c.askSum += float64(ms.LastAsk)
		c.askTicks++
	}
	c.reserve = ms.Reserve
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Sample is the population state at a window boundary.
type Sample struct {
	Agents      int
	Food        []float64 // per living agent
	Money       []float64
	Generations []float64
	CellMoney   uint64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick uint64, s Sample) WindowStats {
	stats := WindowStats{
		RunID:           c.runID,
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,

		Agents: s.Agents,

		Births:    c.events.Births,
		Deaths:    c.events.Deaths,
		Merges:    c.events.Merges,
		Spawns:    c.events.Spawns,
		Mutations: c.events.Mutations,
		Moves:     c.events.Moves,
		Intents:   c.events.Trades,

		Trades:            c.trades,
		BuyVolume:         c.buyVolume,
		SellVolume:        c.sellVolume,
		BoughtFromReserve: c.fromReserve,
		SoldToReserve:     c.toReserve,
		Reserve:           c.reserve,

		CellMoney: s.CellMoney,
	}
	if c.bidTicks > 0 {
		stats.MeanBid = c.bidSum / float64(c.bidTicks)
	}
	if c.askTicks > 0 {
		stats.MeanAsk = c.askSum / float64(c.askTicks)
	}

	stats.FoodMean, stats.FoodStd, stats.FoodP10, stats.FoodP50, stats.FoodP90 = Distribution(s.Food)
	stats.MoneyMean, stats.MoneyStd, stats.MoneyP10, stats.MoneyP50, stats.MoneyP90 = Distribution(s.Money)
	stats.GenerationMean, _, _, _, _ = Distribution(s.Generations)
	for _, g := range s.Generations {
		stats.GenerationMax = max(stats.GenerationMax, g)
	}

	// Reset for next window
	reserve := c.reserve
	*c = Collector{
		runID:           c.runID,
		windowTicks:     c.windowTicks,
		windowStartTick: currentTick,
		reserve:         reserve,
	}

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() uint64 {
	return c.windowTicks
}
