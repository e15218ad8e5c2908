package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/evonomics/market"
)

// MarketLogName is the file the market log writes inside an output directory.
const MarketLogName = "market.jsonl.zst"

// MarketLog appends one JSON line per clearing round to a zstd stream.
type MarketLog struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewMarketLog creates dir/market.jsonl.zst. Returns nil if dir is empty.
func NewMarketLog(dir string) (*MarketLog, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating market log directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, MarketLogName))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", MarketLogName, err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &MarketLog{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Write appends a clearing round.
func (l *MarketLog) Write(s market.Stats) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return os.ErrClosed
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return fmt.Errorf("writing market log: %w", err)
	}
	return l.w.WriteByte('\n')
}

// Close flushes the stream and closes the file.
func (l *MarketLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}

	var firstErr error
	if err := l.w.Flush(); err != nil {
		firstErr = err
	}
	if err := l.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := l.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	l.w, l.enc, l.f = nil, nil, nil
	return firstErr
}

// ReadMarketLog decodes every round from a market log file.
func ReadMarketLog(path string) ([]market.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var out []market.Stats
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var s market.Stats
		if err := json.Unmarshal(sc.Bytes(), &s); err != nil {
			return out, fmt.Errorf("decoding market log line %d: %w", len(out)+1, err)
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
