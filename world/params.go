package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/evonomics/brain"
)

// Rates are the live-tunable probabilities and bounty. They are replaced between
// ticks, never during one.
type Rates struct {
	SpawnChance       float64
	MutationChance    float64
	GeneralFoodChance float64
	CornucopiaBounty  uint32
	CornucopiaChance  float64
}

// ErrInvalidRate is returned for probabilities outside [0, 1].
var ErrInvalidRate = errors.New("rate outside [0, 1]")

// CheckProbability rejects NaN and values outside [0, 1].
func CheckProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%v: %w", p, ErrInvalidRate)
	}
	return nil
}

// Validate checks every probability.
func (r Rates) Validate() error {
	for _, p := range []float64{r.SpawnChance, r.MutationChance, r.GeneralFoodChance, r.CornucopiaChance} {
		if err := CheckProbability(p); err != nil {
			return err
		}
	}
	return nil
}

// Params is everything step and update need besides the cells themselves.
type Params struct {
	Rates       Rates
	MovePenalty uint32
	SpawnFood   uint32
	Genesis     brain.Params
}

// Events counts what happened in a span of cells during one update.
type Events struct {
	Births    int // divisions
	Deaths    int // starvation
	Merges    int // crossovers from colliding brains
	Spawns    int // spontaneous generation
	Mutations int
	Moves     int
	Trades    int // intents placed
}

// Add accumulates o into e.
func (e *Events) Add(o Events) {
	e.Births += o.Births
	e.Deaths += o.Deaths
	e.Merges += o.Merges
	e.Spawns += o.Spawns
	e.Mutations += o.Mutations
	e.Moves += o.Moves
	e.Trades += o.Trades
}
