package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/evonomics/market"
)

// HistoryName is the database file inside an output directory.
const HistoryName = "history.db"

// ErrClosed is returned by History methods after Close.
var ErrClosed = errors.New("history closed")

// History stores market rounds and window stats in sqlite. Writes go through a
// buffered channel to a single writer goroutine and are dropped when it falls
// behind; the market log stays the complete record.
type History struct {
	db    *sql.DB
	runID string

	ch   chan historyReq
	wg   sync.WaitGroup
	once sync.Once
	// mu is held for reading around sends on ch and for writing around close(ch).
	mu sync.RWMutex

	closed  atomic.Bool
	dropped atomic.Uint64
}

type historyReq struct {
	market *market.Stats
	window *WindowStats
	sync   chan struct{}
}

// OpenHistory opens (or creates) the database at path and registers the run.
func OpenHistory(path, runID string, seed int64, buffer int) (*History, error) {
	if path == "" {
		return nil, fmt.Errorf("empty history path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// one writer plus concurrent readers under WAL
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)

	if err := initHistory(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO runs(run_id,seed,started_at) VALUES(?,?,?)`,
		runID, seed, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}

	if buffer < 1 {
		buffer = 1
	}
	h := &History{
		db:    db,
		runID: runID,
		ch:    make(chan historyReq, buffer),
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop()
	}()
	return h, nil
}

func initHistory(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS market (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			last_bid INTEGER NOT NULL,
			last_ask INTEGER NOT NULL,
			reserve INTEGER NOT NULL,
			buy_volume INTEGER NOT NULL,
			sell_volume INTEGER NOT NULL,
			bought_from_reserve INTEGER NOT NULL,
			sold_to_reserve INTEGER NOT NULL,
			trades INTEGER NOT NULL,
			orders INTEGER NOT NULL,
			resting_bids INTEGER NOT NULL,
			resting_asks INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS windows (
			run_id TEXT NOT NULL,
			window_end INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			trades INTEGER NOT NULL,
			reserve INTEGER NOT NULL,
			food_mean REAL NOT NULL,
			money_mean REAL NOT NULL,
			generation_max REAL NOT NULL,
			PRIMARY KEY (run_id, window_end)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("initializing history: %w", err)
		}
	}
	return nil
}

// RunID returns the run this history records.
func (h *History) RunID() string { return h.runID }

// Dropped returns how many writes were discarded because the writer lagged.
func (h *History) Dropped() uint64 { return h.dropped.Load() }

// WriteMarket queues a clearing round without blocking.
func (h *History) WriteMarket(s market.Stats) {
	h.enqueue(historyReq{market: &s})
}

// WriteWindow queues a window summary without blocking.
func (h *History) WriteWindow(s WindowStats) {
	h.enqueue(historyReq{window: &s})
}

func (h *History) enqueue(r historyReq) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed.Load() {
		return
	}
	select {
	case h.ch <- r:
	default:
		h.dropped.Add(1)
	}
}

// Sync waits until every write queued before the call is committed.
func (h *History) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.send(ctx, historyReq{sync: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *History) send(ctx context.Context, r historyReq) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed.Load() {
		return ErrClosed
	}
	select {
	case h.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns up to limit of the latest market rounds of this run, oldest first.
func (h *History) Recent(ctx context.Context, limit int) ([]market.Stats, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := h.db.QueryContext(ctx, `SELECT tick,last_bid,last_ask,reserve,buy_volume,sell_volume,
		bought_from_reserve,sold_to_reserve,trades,orders,resting_bids,resting_asks
		FROM market WHERE run_id=? ORDER BY tick DESC LIMIT ?`, h.runID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []market.Stats
	for rows.Next() {
		var (
			s                                  market.Stats
			tick, reserve, buy, sell, from, to int64
		)
		if err := rows.Scan(&tick, &s.LastBid, &s.LastAsk, &reserve, &buy, &sell,
			&from, &to, &s.Trades, &s.Orders, &s.RestingBids, &s.RestingAsks); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		s.Tick, s.Reserve = uint64(tick), uint64(reserve)
		s.BuyVolume, s.SellVolume = uint64(buy), uint64(sell)
		s.BoughtFromReserve, s.SoldToReserve = uint64(from), uint64(to)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close drains queued writes and closes the database.
func (h *History) Close() error {
	if h == nil {
		return nil
	}
	var err error
	h.once.Do(func() {
		h.mu.Lock()
		h.closed.Store(true)
		close(h.ch)
		h.mu.Unlock()
		h.wg.Wait()
		err = h.db.Close()
	})
	return err
}

func (h *History) loop() {
	ctx := context.Background()

	insertMarket, err := h.db.Prepare(`INSERT OR REPLACE INTO market(run_id,tick,last_bid,last_ask,reserve,
		buy_volume,sell_volume,bought_from_reserve,sold_to_reserve,trades,orders,resting_bids,resting_asks)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		slog.Error("preparing history insert", "error", err)
	}
	insertWindow, err := h.db.Prepare(`INSERT OR REPLACE INTO windows(run_id,window_end,agents,births,deaths,
		trades,reserve,food_mean,money_mean,generation_max) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		slog.Error("preparing history insert", "error", err)
	}
	defer func() {
		if insertMarket != nil {
			_ = insertMarket.Close()
		}
		if insertWindow != nil {
			_ = insertWindow.Close()
		}
	}()

	var tx *sql.Tx
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			slog.Error("committing history", "error", err)
		}
		tx = nil
	}

	for r := range h.ch {
		if r.sync != nil {
			commit()
			close(r.sync)
			continue
		}
		if tx == nil {
			txx, err := h.db.BeginTx(ctx, nil)
			if err != nil {
				slog.Error("starting history transaction", "error", err)
				h.dropped.Add(1)
				continue
			}
			tx = txx
		}

		var err error
		switch {
		case r.market != nil && insertMarket != nil:
			s := r.market
			_, err = tx.Stmt(insertMarket).Exec(h.runID, int64(s.Tick), s.LastBid, s.LastAsk, int64(s.Reserve),
				int64(s.BuyVolume), int64(s.SellVolume), int64(s.BoughtFromReserve), int64(s.SoldToReserve),
				s.Trades, s.Orders, s.RestingBids, s.RestingAsks)
		case r.window != nil && insertWindow != nil:
			w := r.window
			_, err = tx.Stmt(insertWindow).Exec(h.runID, int64(w.WindowEndTick), w.Agents, w.Births, w.Deaths,
				w.Trades, int64(w.Reserve), w.FoodMean, w.MoneyMean, w.GenerationMax)
		}
		if err != nil {
			slog.Error("writing history", "error", err)
			_ = tx.Rollback()
			tx = nil
			continue
		}

		// commit whenever the queue drains so readers see fresh rows
		if len(h.ch) == 0 {
			commit()
		}
	}
	commit()
}
