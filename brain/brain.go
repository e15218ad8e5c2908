// Package brain implements the evolvable bytecode controller: codons, genomes,
// the stack interpreter, mutation and multi-parent crossover.
package brain

import (
	"math"
	"math/rand"
)

// NumState is the number of private memory registers per brain.
const NumState = 4

// DecisionKind is the externally visible outcome of one decide call.
type DecisionKind uint8

const (
	DecideNothing DecisionKind = iota
	DecideMove
	DecideDivide
	DecideTrade
)

func (k DecisionKind) String() string {
	switch k {
	case DecideMove:
		return "move"
	case DecideDivide:
		return "divide"
	case DecideTrade:
		return "trade"
	default:
		return "nothing"
	}
}

// Decision is what the brain asks its cell to do this tick. Dir is absolute
// (already rotated by orientation). Quantity < 0 bids for food, > 0 asks.
type Decision struct {
	Kind     DecisionKind
	Dir      Direction
	Quantity int
	Rate     int
}

// Brain is an agent controller: private memory and heading over a shared genome.
type Brain struct {
	Memory      [NumState]float64
	Orientation uint8 // quarter turns counter-clockwise, 0..3
	Hue         float64
	Generation  uint32

	genome *Genome
	params Params
}

// Random creates a generation-zero brain with a freshly sampled genome.
func Random(rng *rand.Rand, p Params) *Brain {
	return &Brain{
		Orientation: uint8(rng.Intn(4)),
		Hue:         rng.Float64() * 2 * math.Pi,
		genome:      RandomGenome(rng, p),
		params:      p,
	}
}

// New wraps an existing genome. The genome becomes shared and must not be modified.
func New(g *Genome, p Params) *Brain {
	return &Brain{genome: g, params: p}
}

// Genome returns the shared genome. Callers must not modify it.
func (b *Brain) Genome() *Genome { return b.genome }

// Signal is the value neighbors perceive from this brain.
func (b *Brain) Signal() float64 { return b.Memory[0] }

// Offspring copies the brain for division. The genome stays shared.
func (b *Brain) Offspring() *Brain {
	child := *b
	child.Generation++
	return &child
}

// Mutate edits a private copy of the genome and nudges the hue so lineages drift apart.
func (b *Brain) Mutate(rng *rand.Rand) {
	g := b.genome.Clone()
	g.Mutate(rng)
	b.genome = g
	b.Hue = normalizeHue(b.Hue + rng.NormFloat64()*0.1)
}

// Decide runs every gene once in random order. Writes update memory as they happen
// and rotations turn the brain immediately; of the remaining actions the last one wins.
func (b *Brain) Decide(rng *rand.Rand, inputs []float64) Decision {
	entries := b.genome.Entries
	var buf [32]int
	order := buf[:0]
	for i := range entries {
		order = append(order, i)
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	final := Action{}
	for _, i := range order {
		a := b.genome.Execute(inputs, b.Memory[:], entries[i])
		switch a.Kind {
		case ActWrite:
			b.Memory[a.Register] = a.Value
		case ActRotateLeft:
			b.Orientation = (b.Orientation + 1) % 4
		case ActRotateRight:
			b.Orientation = (b.Orientation + 3) % 4
		case ActMove, ActDivide, ActTrade:
			final = a
		}
	}
	return b.decision(final)
}

func (b *Brain) decision(a Action) Decision {
	switch a.Kind {
	case ActMove:
		return Decision{Kind: DecideMove, Dir: a.Dir.Rotate(b.Orientation)}
	case ActDivide:
		return Decision{Kind: DecideDivide, Dir: a.Dir.Rotate(b.Orientation)}
	case ActTrade:
		if math.IsNaN(a.Quantity) || math.IsInf(a.Quantity, 0) || math.IsNaN(a.Rate) || math.IsInf(a.Rate, 0) || a.Rate < 0 {
			return Decision{}
		}
		limit := float64(max(b.params.MaxTradeQuantity, 1))
		q := math.Max(-limit, math.Min(limit, math.Round(a.Quantity)))
		r := math.Min(math.Floor(a.Rate), float64(max(b.params.MaxTradeRate, 1)))
		return Decision{Kind: DecideTrade, Quantity: int(q), Rate: int(r)}
	}
	return Decision{}
}
