package game

import (
	"log/slog"

	"github.com/pthm-cable/evonomics/market"
	"github.com/pthm-cable/evonomics/telemetry"
)

// recordTick feeds one finished tick to the collector and the market sinks,
// then flushes the stats window when it is due.
func (s *Simulation) recordTick(ms market.Stats) {
	s.collector.RecordTick(s.lastEvents, ms)

	if err := s.marketLog.Write(ms); err != nil {
		slog.Error("failed to write market log", "error", err)
	}
	s.history.WriteMarket(ms)

	s.flushTelemetry()
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, s.sample())
	perfStats := s.perfCollector.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
	s.history.WriteWindow(stats)

	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// sample collects per-agent holdings for the window distributions.
func (s *Simulation) sample() telemetry.Sample {
	var out telemetry.Sample
	for i := range s.grid.Cells() {
		c := s.grid.Cell(i)
		out.CellMoney += uint64(c.Money)
		if !c.Occupied() {
			continue
		}
		out.Agents++
		out.Food = append(out.Food, float64(c.Food))
		out.Money = append(out.Money, float64(c.Money))
		out.Generations = append(out.Generations, float64(c.Brain.Generation))
	}
	return out
}
