package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/market"
)

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("", "run")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	// nil manager is a no-op sink
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Errorf("nil WriteTelemetry: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOutputManager_HeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "run-7")
	if err != nil {
		t.Fatal(err)
	}

	for tick := uint64(200); tick <= 600; tick += 200 {
		if err := om.WriteTelemetry(WindowStats{RunID: "run-7", WindowEndTick: tick, Agents: int(tick)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkExtinction, Tick: 600, Description: "gone"}); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf(PerfStats{}, 600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,window_end,agents,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "run-7,600,600,") {
		t.Errorf("unexpected last row %q", lines[3])
	}

	bm, err := os.ReadFile(filepath.Join(dir, "bookmarks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "type,tick,description\nextinction,600,gone\n"; string(bm) != want {
		t.Errorf("bookmarks.csv = %q, want %q", bm, want)
	}

	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}

func TestMarketLog_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMarketLog(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []market.Stats{
		{Tick: 1, LastBid: -1, LastAsk: 3, Reserve: 100, SellVolume: 2, Trades: 1},
		{Tick: 2, LastBid: 2, LastAsk: -1, Reserve: 98, BoughtFromReserve: 2},
	}
	for _, s := range want {
		if err := ml.Write(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := ml.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ml.Write(market.Stats{}); err == nil {
		t.Error("expected an error writing to a closed log")
	}

	got, err := ReadMarketLog(filepath.Join(dir, MarketLogName))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d rounds, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("round %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHistory_Recent(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryName)
	h, err := OpenHistory(path, "run-a", 42, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for tick := uint64(1); tick <= 10; tick++ {
		h.WriteMarket(market.Stats{Tick: tick, LastBid: -1, LastAsk: int(tick), Reserve: 1000 - tick, Trades: int(tick % 3)})
	}
	h.WriteWindow(WindowStats{WindowEndTick: 10, Agents: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := h.Recent(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("Recent(4) returned %d rows", len(got))
	}
	for i, s := range got {
		wantTick := uint64(7 + i)
		if s.Tick != wantTick || s.LastAsk != int(wantTick) || s.Reserve != 1000-wantTick || s.LastBid != -1 {
			t.Errorf("row %d = %+v, want tick %d", i, s, wantTick)
		}
	}
	if h.Dropped() != 0 {
		t.Errorf("dropped %d writes with a roomy buffer", h.Dropped())
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Recent(ctx, 1); err != ErrClosed {
		t.Errorf("Recent after Close = %v, want ErrClosed", err)
	}
	// writes after close are ignored
	h.WriteMarket(market.Stats{Tick: 11})
}

func TestHistory_SeparatesRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryName)
	ctx := context.Background()

	first, err := OpenHistory(path, "first", 1, 8)
	if err != nil {
		t.Fatal(err)
	}
	first.WriteMarket(market.Stats{Tick: 1})
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := OpenHistory(path, "second", 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	got, err := second.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("second run sees %d rows of the first", len(got))
	}
}

func TestHistory_CloseWhileSyncing(t *testing.T) {
	for round := 0; round < 20; round++ {
		h, err := OpenHistory(filepath.Join(t.TempDir(), HistoryName), "run", 1, 4)
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					h.WriteMarket(market.Stats{Tick: uint64(i)})
					if err := h.Sync(context.Background()); err != nil && err != ErrClosed {
						t.Errorf("Sync: %v", err)
						return
					}
				}
			}()
		}
		if err := h.Close(); err != nil {
			t.Fatal(err)
		}
		wg.Wait()
	}
}
