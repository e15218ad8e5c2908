package world

import (
	"math/rand"

	"github.com/pthm-cable/evonomics/brain"
)

// Diff is what a cell loses to its own decision this tick.
type Diff struct {
	ConsumeFood  uint32
	ConsumeMoney uint32
	Vacate       bool // the occupant leaves or dies
	Died         bool
	Divided      bool
	Trade        TradeIntent
}

// Move is a payload sent to one neighbor.
type Move struct {
	Food  uint32
	Money uint32
	Brain *brain.Brain
}

// Moves holds outgoing payloads by absolute direction.
type Moves [brain.NumDirections]Move

// justExist is the cost of doing nothing.
var justExist = Diff{ConsumeFood: 1}

// Step decides what the occupant of cell does. It only mutates the occupant's
// brain state (memory, orientation); neighbors are seen through hood.
func Step(rng *rand.Rand, p *Params, cell *Cell, hood *Neighborhood) (Diff, Moves) {
	var out Moves
	if cell.Brain == nil {
		return Diff{Vacate: true}, out
	}
	if cell.Food == 0 {
		return Diff{Vacate: true, Died: true}, out
	}

	var buf [NumInputs]float64
	inputs := Inputs(hood, cell.Brain.Orientation, cell.Food, cell.Money, buf[:])
	d := cell.Brain.Decide(rng, inputs)

	switch d.Kind {
	case brain.DecideMove:
		if cell.Food <= p.MovePenalty {
			return justExist, out
		}
		out[d.Dir] = Move{Food: cell.Food - 1 - p.MovePenalty, Money: cell.Money, Brain: cell.Brain}
		return Diff{ConsumeFood: cell.Food, ConsumeMoney: cell.Money, Vacate: true}, out

	case brain.DecideDivide:
		if cell.Food < 2+p.MovePenalty {
			return justExist, out
		}
		half := cell.Money / 2
		out[d.Dir] = Move{Food: cell.Food/2 - p.MovePenalty/2, Money: half, Brain: cell.Brain.Offspring()}
		return Diff{ConsumeFood: cell.Food/2 + 1 + p.MovePenalty/2, ConsumeMoney: half, Divided: true}, out

	case brain.DecideTrade:
		if !affordable(cell, d.Quantity, d.Rate) {
			return justExist, out
		}
		return Diff{ConsumeFood: 1, Trade: TradeIntent{Quantity: d.Quantity, Rate: d.Rate}}, out
	}
	return justExist, out
}

// affordable checks that a bid is backed by money and an ask by food the cell
// can spare after paying for this tick.
func affordable(cell *Cell, qty, rate int) bool {
	switch {
	case qty < 0:
		return uint64(cell.Money) >= uint64(rate)*uint64(-qty)
	case qty > 0:
		return uint64(cell.Food) > uint64(qty)
	}
	return false
}
