package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evonomics/config"
	"github.com/pthm-cable/evonomics/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	require.NoError(t, err)

	raw := pv.ExtractFromConfig(cfg)
	require.Len(t, raw, pv.Dim())
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		assert.InDelta(t, raw[i], back[i], 1e-12, pv.Specs[i].Name)
	}

	applied := *cfg
	pv.ApplyToConfig(&applied, raw)
	assert.Equal(t, cfg.Rates, applied.Rates)
	assert.Equal(t, cfg.Energy, applied.Energy)
}

func TestApplyToConfigClamps(t *testing.T) {
	pv := NewParamVector()
	cfg, err := config.Defaults()
	require.NoError(t, err)

	pv.ApplyToConfig(cfg, []float64{-1, 5, 0.1, 100, 2, -3, 16.4})
	assert.Zero(t, cfg.Rates.SpawnChance)
	assert.Equal(t, 0.02, cfg.Rates.MutationChance)
	assert.Equal(t, uint32(32), cfg.Rates.CornucopiaBounty)
	assert.Equal(t, 1.0, cfg.Rates.CornucopiaChance)
	assert.Zero(t, cfg.Energy.MovePenalty)
	assert.Equal(t, uint32(16), cfg.Energy.SpawnFood)
	assert.NoError(t, cfg.Validate())
}

func window(end uint64, agents, trades int, cellMoney, reserve uint64) telemetry.WindowStats {
	return telemetry.WindowStats{
		WindowStartTick: end - 100,
		WindowEndTick:   end,
		Agents:          agents,
		Trades:          trades,
		CellMoney:       cellMoney,
		Reserve:         reserve,
	}
}

func TestComputeQuality(t *testing.T) {
	assert.Zero(t, computeQuality(nil))

	var steady, dead []telemetry.WindowStats
	for i := uint64(1); i <= 10; i++ {
		steady = append(steady, window(i*100, 200, 2000, 500, 500))
		dead = append(dead, window(i*100, 2, 0, 0, 1000))
	}
	q := computeQuality(steady)
	assert.Greater(t, q, 0.9)
	assert.LessOrEqual(t, q, 1.0)
	assert.Zero(t, computeQuality(dead))

	idle := make([]telemetry.WindowStats, len(steady))
	copy(idle, steady)
	for i := range idle {
		idle[i].Trades = 0
	}
	assert.Less(t, computeQuality(idle), q)
}

func TestComputeFitnessPrefersSurvival(t *testing.T) {
	assert.Less(t, computeFitness(2000, 0), computeFitness(1000, 1))
	assert.Less(t, computeFitness(1000, 0.5), computeFitness(1000, 0))
}
