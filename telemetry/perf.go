package telemetry

import (
	"log/slog"
	"time"
)

// Phase is a timed section of a simulation tick.
type Phase uint8

const (
	PhaseStep Phase = iota
	PhaseUpdate
	PhaseMarket
	PhaseTelemetry

	numPhases
	phaseNone Phase = 255
)

var phaseNames = [numPhases]string{"step", "update", "market", "telemetry"}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "none"
}

// phaseTimes holds one duration per phase.
type phaseTimes [numPhases]time.Duration

type perfSample struct {
	tick   time.Duration
	phases phaseTimes
}

// PerfCollector tracks tick timing over a rolling window. It allocates only
// at construction.
type PerfCollector struct {
	samples []perfSample
	next    int
	count   int

	current    phaseTimes
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase

	// View publishing cadence
	lastFrame time.Time
	frame     time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		samples: make([]perfSample, windowSize),
		phase:   phaseNone,
	}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = phaseTimes{}
	p.phase = phaseNone
}

// StartPhase closes the running phase and opens the next.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase < numPhases {
		p.current[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick records the tick into the window.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.phase = phaseNone

	p.samples[p.next] = perfSample{tick: now.Sub(p.tickStart), phases: p.current}
	p.next = (p.next + 1) % len(p.samples)
	p.count = min(p.count+1, len(p.samples))
}

// RecordFrame records the time between published views.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average tick, 0-100

	TicksPerSecond float64

	// View publishing cadence
	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{FrameDuration: p.frame}
	if p.frame > 0 {
		s.FPS = float64(time.Second) / float64(p.frame)
	}
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var sum phaseTimes
	for i, smp := range p.samples[:p.count] {
		total += smp.tick
		if i == 0 || smp.tick < s.MinTickDuration {
			s.MinTickDuration = smp.tick
		}
		s.MaxTickDuration = max(s.MaxTickDuration, smp.tick)
		for ph, d := range smp.phases {
			sum[ph] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgTickDuration = total / n
	for ph := range sum {
		s.PhaseAvg[ph] = sum[ph] / n
		if s.AvgTickDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration) * 100
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	return s
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	RunID        string  `csv:"run_id"`
	WindowEnd    uint64  `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	FPS          float64 `csv:"fps"`
	StepPct      float64 `csv:"step_pct"`
	UpdatePct    float64 `csv:"update_pct"`
	MarketPct    float64 `csv:"market_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(runID string, windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		RunID:        runID,
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		FPS:          s.FPS,
		StepPct:      s.PhasePct[PhaseStep],
		UpdatePct:    s.PhasePct[PhaseUpdate],
		MarketPct:    s.PhasePct[PhaseMarket],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
