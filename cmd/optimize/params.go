// Package main provides CMA-ES optimization for evonomics rates.
package main

import (
	"math"

	"github.com/pthm-cable/evonomics/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Rates
			{Name: "spawn_chance", Path: "rates.spawn_chance", Min: 0, Max: 0.0001, Default: 0.000001},
			{Name: "mutation_chance", Path: "rates.mutation_chance", Min: 0.0001, Max: 0.02, Default: 0.001},
			{Name: "general_food_chance", Path: "rates.general_food_chance", Min: 0.005, Max: 0.2, Default: 0.05},
			{Name: "cornucopia_bounty", Path: "rates.cornucopia_bounty", Min: 1, Max: 32, Default: 8},
			{Name: "cornucopia_chance", Path: "rates.cornucopia_chance", Min: 0.05, Max: 1, Default: 0.5},
			// Energy
			{Name: "move_penalty", Path: "energy.move_penalty", Min: 0, Max: 8, Default: 2},
			{Name: "spawn_food", Path: "energy.spawn_food", Min: 4, Max: 64, Default: 16},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)

	cfg.Rates.SpawnChance = c[0]
	cfg.Rates.MutationChance = c[1]
	cfg.Rates.GeneralFoodChance = c[2]
	cfg.Rates.CornucopiaBounty = uint32(math.Round(c[3]))
	cfg.Rates.CornucopiaChance = c[4]

	cfg.Energy.MovePenalty = uint32(math.Round(c[5]))
	cfg.Energy.SpawnFood = uint32(math.Round(c[6]))
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Rates.SpawnChance,
		cfg.Rates.MutationChance,
		cfg.Rates.GeneralFoodChance,
		float64(cfg.Rates.CornucopiaBounty),
		cfg.Rates.CornucopiaChance,
		float64(cfg.Energy.MovePenalty),
		float64(cfg.Energy.SpawnFood),
	}
}
