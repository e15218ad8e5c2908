package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseStep)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseUpdate)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if stats.PhaseAvg[PhaseStep] <= 0 {
		t.Error("expected step phase to be tracked")
	}
	if stats.PhaseAvg[PhaseUpdate] <= 0 {
		t.Error("expected update phase to be tracked")
	}
	if stats.PhaseAvg[PhaseMarket] != 0 {
		t.Errorf("market phase never ran, got %v", stats.PhaseAvg[PhaseMarket])
	}
	if stats.MinTickDuration > stats.AvgTickDuration || stats.AvgTickDuration > stats.MaxTickDuration {
		t.Errorf("min/avg/max out of order: %v %v %v", stats.MinTickDuration, stats.AvgTickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseStep)
		time.Sleep(10 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
	if pc.count != 5 {
		t.Errorf("window holds %d samples, want 5", pc.count)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseMarket)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseUpdate)
		time.Sleep(1 * time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.PhasePct[PhaseUpdate] <= stats.PhasePct[PhaseMarket] {
		t.Errorf("expected update (%v%%) > market (%v%%)", stats.PhasePct[PhaseUpdate], stats.PhasePct[PhaseMarket])
	}
	if total := stats.PhasePct[PhaseUpdate] + stats.PhasePct[PhaseMarket]; total > 100.01 {
		t.Errorf("phase shares sum to %v%%", total)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("expected zero stats for empty collector, got %+v", stats)
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	// First call establishes baseline
	pc.RecordFrame()
	time.Sleep(16 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()

	if stats.FrameDuration < 15*time.Millisecond {
		t.Errorf("expected frame duration >= 15ms, got %v", stats.FrameDuration)
	}
	if stats.FPS <= 0 || stats.FPS > 70 {
		t.Errorf("expected FPS in (0, 70] with 16ms frames, got %v", stats.FPS)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseStep, "step"},
		{PhaseUpdate, "update"},
		{PhaseMarket, "market"},
		{PhaseTelemetry, "telemetry"},
		{phaseNone, "none"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	var stats PerfStats
	stats.AvgTickDuration = 2 * time.Millisecond
	stats.PhasePct[PhaseStep] = 60
	stats.PhasePct[PhaseMarket] = 5

	row := stats.ToCSV("run", 400)
	if row.AvgTickUS != 2000 {
		t.Errorf("AvgTickUS = %d, want 2000", row.AvgTickUS)
	}
	if row.StepPct != 60 || row.MarketPct != 5 || row.UpdatePct != 0 {
		t.Errorf("unexpected phase split: %+v", row)
	}
	if row.RunID != "run" || row.WindowEnd != 400 {
		t.Errorf("unexpected identity columns: %+v", row)
	}
}
