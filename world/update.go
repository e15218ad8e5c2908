package world

import (
	"math/rand"

	"github.com/pthm-cable/evonomics/brain"
)

// Update applies the cell's own diff and everything its neighbors sent it,
// then rolls mutation, spawning and food regeneration. It returns the cell's
// next state and never touches any other cell.
func Update(rng *rand.Rand, p *Params, cell Cell, diff Diff, in *Moves, ev *Events) Cell {
	prev := cell.Brain
	next := update(rng, p, cell, diff, in, ev)
	if next.Brain != prev {
		next.Occupant++
	}
	return next
}

func update(rng *rand.Rand, p *Params, cell Cell, diff Diff, in *Moves, ev *Events) Cell {
	if cell.Kind == KindWall {
		// walls swallow brains and food; money waits for the reserve sweep
		for i := range in {
			cell.Money += in[i].Money
		}
		cell.Brain = nil
		cell.Food = 0
		cell.Signal = 0
		cell.Trade = TradeIntent{}
		return cell
	}

	cell.Food = subSat(cell.Food, diff.ConsumeFood)
	cell.Money = subSat(cell.Money, diff.ConsumeMoney)
	cell.Trade = diff.Trade
	if diff.Vacate {
		if cell.Brain != nil && !diff.Died {
			ev.Moves++
		}
		cell.Brain = nil
		cell.Trade = TradeIntent{}
	}
	if diff.Died {
		ev.Deaths++
	}
	if diff.Divided {
		ev.Births++
	}
	if cell.Trade.Active() {
		ev.Trades++
	}

	var arrivals [brain.NumDirections]*brain.Brain
	n := 0
	for i := range in {
		m := &in[i]
		cell.Food += m.Food
		cell.Money += m.Money
		if m.Brain != nil {
			arrivals[n] = m.Brain
			n++
		}
	}
	switch {
	case n == 0:
	case n == 1 && cell.Brain == nil:
		cell.Brain = arrivals[0]
	default:
		parents := make([]*brain.Brain, 0, n+1)
		if cell.Brain != nil {
			parents = append(parents, cell.Brain)
		}
		parents = append(parents, arrivals[:n]...)
		cell.Brain = brain.Combine(rng, parents)
		cell.Trade = TradeIntent{}
		ev.Merges++
	}

	if cell.Brain != nil && rng.Float64() < p.Rates.MutationChance {
		cell.Brain.Mutate(rng)
		ev.Mutations++
	}
	if cell.Brain == nil && rng.Float64() < p.Rates.SpawnChance {
		cell.Brain = brain.Random(rng, p.Genesis)
		cell.Food += p.SpawnFood
		ev.Spawns++
	}

	if cell.Kind == KindSource {
		if rng.Float64() < p.Rates.CornucopiaChance {
			cell.Food += p.Rates.CornucopiaBounty
		}
	} else if rng.Float64() < p.Rates.GeneralFoodChance {
		cell.Food++
	}

	cell.Signal = 0
	if cell.Brain != nil {
		cell.Signal = cell.Brain.Signal()
	}
	return cell
}

func subSat(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
