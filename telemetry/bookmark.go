package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkTradeBreakthrough  BookmarkType = "trade_breakthrough"
	BookmarkPopulationRecovery BookmarkType = "population_recovery"
	BookmarkPopulationCrash    BookmarkType = "population_crash"
	BookmarkExtinction         BookmarkType = "extinction"
	BookmarkReserveDrain       BookmarkType = "reserve_drain"
	BookmarkStableEconomy      BookmarkType = "stable_economy"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        uint64       `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentMin          int  // minimum population in recent history
	recentPeak         int  // peak population in recent history
	reserveDrained     bool // latched until the reserve refills
	stableWindowsCount int  // consecutive windows with a stable trading population
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable economy detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		recentMin:   -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Trade breakthrough: trades > 2x rolling average
		if b := bd.checkTradeBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Recovery: was ≤3, now ≥3x that
		if b := bd.checkRecovery(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Crash: dropped >30% from recent peak
		if b := bd.checkCrash(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		if b := bd.checkExtinction(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable economy: trading population with low variance over 5+ windows
		if b := bd.checkStableEconomy(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	if b := bd.checkReserveDrain(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	// Update history
	bd.addToHistory(stats)

	if stats.Agents < bd.recentMin || bd.recentMin < 0 {
		bd.recentMin = stats.Agents
	}
	if stats.Agents > bd.recentPeak {
		bd.recentPeak = stats.Agents
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// last returns the most recently added window.
func (bd *BookmarkDetector) last() WindowStats {
	i := bd.historyIdx - 1
	if i < 0 {
		i = bd.historySize - 1
	}
	return bd.history[i]
}

func (bd *BookmarkDetector) checkTradeBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Trades
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Trades) > avg*2.0 && stats.Trades >= 5 {
		return &Bookmark{
			Type:        BookmarkTradeBreakthrough,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d trades is %.1fx average (%.1f)", stats.Trades, float64(stats.Trades)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkRecovery(stats WindowStats) *Bookmark {
	if bd.recentMin < 1 || bd.recentMin > 3 {
		return nil
	}

	threshold := bd.recentMin * 3
	if stats.Agents >= threshold && stats.Agents >= 6 {
		// Reset the minimum after triggering
		oldMin := bd.recentMin
		bd.recentMin = stats.Agents

		return &Bookmark{
			Type:        BookmarkPopulationRecovery,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population recovered from %d to %d", oldMin, stats.Agents),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkCrash(stats WindowStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Agents)/float64(bd.recentPeak)
	if dropPercent > 0.30 && stats.Agents < bd.recentPeak-10 {
		// Reset peak after crash
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Agents

		return &Bookmark{
			Type:        BookmarkPopulationCrash,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Population crashed %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Agents),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkExtinction(stats WindowStats) *Bookmark {
	prev := bd.last()
	if stats.Agents > 0 || prev.Agents == 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkExtinction,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Last %d agents died out", prev.Agents),
	}
}

// checkReserveDrain fires when the reserve falls under 10% of the money supply
// and re-arms once it climbs back over 20%.
func (bd *BookmarkDetector) checkReserveDrain(stats WindowStats) *Bookmark {
	supply := stats.Reserve + stats.CellMoney
	if supply == 0 {
		return nil
	}
	share := float64(stats.Reserve) / float64(supply)

	if bd.reserveDrained {
		if share > 0.20 {
			bd.reserveDrained = false
		}
		return nil
	}
	if share >= 0.10 {
		return nil
	}

	bd.reserveDrained = true
	return &Bookmark{
		Type:        BookmarkReserveDrain,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Reserve down to %d of %d (%.1f%%)", stats.Reserve, supply, share*100),
	}
}

func (bd *BookmarkDetector) checkStableEconomy(stats WindowStats) *Bookmark {
	// Need a population that actually trades
	if stats.Agents < 10 || stats.Trades == 0 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	// Ring order does not matter for mean and variance, but the window must be
	// the four most recent entries.
	recent := make([]WindowStats, 0, 4)
	for i := 1; i <= 4; i++ {
		idx := (bd.historyIdx - i + bd.historySize) % bd.historySize
		recent = append(recent, bd.history[idx])
	}

	var sum float64
	for _, h := range recent {
		sum += float64(h.Agents)
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := float64(h.Agents) - mean
		variance += d * d
	}
	variance /= 4

	// Low variance: coefficient of variation < 20%
	cv2 := 0.0
	if mean > 0 {
		cv2 = variance / (mean * mean)
	}

	if cv2 < 0.04 { // CV^2 < 0.04 means CV < 0.2
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableEconomy,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Stable economy with %d agents and %d trades over 5+ windows", stats.Agents, stats.Trades),
		}
	}

	return nil
}
