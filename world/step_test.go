package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evonomics/brain"
)

func gene(codons ...brain.Codon) *brain.Brain {
	g := &brain.Genome{Sequence: codons}
	if len(codons) > 0 {
		g.Entries = []int{0}
	}
	return brain.New(g, brain.DefaultParams())
}

func testParams() *Params {
	return &Params{MovePenalty: 2, SpawnFood: 16, Genesis: brain.DefaultParams()}
}

func TestStepVacant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var hood Neighborhood

	diff, moves := Step(rng, testParams(), &Cell{Food: 5, Money: 3}, &hood)
	assert.Equal(t, Diff{Vacate: true}, diff)
	assert.Equal(t, Moves{}, moves)

	diff, _ = Step(rng, testParams(), &Cell{Brain: gene(brain.Codon{Op: brain.OpMove})}, &hood)
	assert.Equal(t, Diff{Vacate: true, Died: true}, diff)
}

func TestStepMove(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var hood Neighborhood
	b := gene(brain.Codon{Op: brain.OpMove, Dir: brain.Right})
	cell := &Cell{Food: 10, Money: 7, Brain: b}

	diff, moves := Step(rng, testParams(), cell, &hood)
	assert.Equal(t, Diff{ConsumeFood: 10, ConsumeMoney: 7, Vacate: true}, diff)
	assert.Equal(t, Move{Food: 7, Money: 7, Brain: b}, moves[brain.Right])
	for d, m := range moves {
		if brain.Direction(d) != brain.Right {
			assert.Equal(t, Move{}, m)
		}
	}

	// too hungry to move: just exist
	cell.Food = 2
	diff, moves = Step(rng, testParams(), cell, &hood)
	assert.Equal(t, Diff{ConsumeFood: 1}, diff)
	assert.Equal(t, Moves{}, moves)
}

func TestStepMoveFollowsOrientation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var hood Neighborhood
	b := gene(brain.Codon{Op: brain.OpMove, Dir: brain.Right})
	b.Orientation = 1

	_, moves := Step(rng, testParams(), &Cell{Food: 10, Brain: b}, &hood)
	assert.Same(t, b, moves[brain.Up].Brain)
}

func TestStepDivide(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var hood Neighborhood
	b := gene(brain.Codon{Op: brain.OpDivide, Dir: brain.Down})
	b.Generation = 2
	cell := &Cell{Food: 10, Money: 7, Brain: b}

	diff, moves := Step(rng, testParams(), cell, &hood)
	assert.Equal(t, Diff{ConsumeFood: 7, ConsumeMoney: 3, Divided: true}, diff)
	child := moves[brain.Down]
	assert.Equal(t, uint32(4), child.Food)
	assert.Equal(t, uint32(3), child.Money)
	require.NotNil(t, child.Brain)
	assert.NotSame(t, b, child.Brain)
	assert.Equal(t, uint32(3), child.Brain.Generation)
	assert.Same(t, b.Genome(), child.Brain.Genome())

	cell.Food = 3
	diff, _ = Step(rng, testParams(), cell, &hood)
	assert.Equal(t, Diff{ConsumeFood: 1}, diff)
}

func TestStepTrade(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var hood Neighborhood
	bid := gene(brain.Codon{Op: brain.OpOffer, Arg: -2, Value: 3})
	ask := gene(brain.Codon{Op: brain.OpOffer, Arg: 4, Value: 1})

	tests := []struct {
		name string
		cell Cell
		want Diff
	}{
		{"bid backed", Cell{Food: 5, Money: 6, Brain: bid}, Diff{ConsumeFood: 1, Trade: TradeIntent{Quantity: -2, Rate: 3}}},
		{"bid short of money", Cell{Food: 5, Money: 5, Brain: bid}, Diff{ConsumeFood: 1}},
		{"ask backed", Cell{Food: 5, Brain: ask}, Diff{ConsumeFood: 1, Trade: TradeIntent{Quantity: 4, Rate: 1}}},
		{"ask short of food", Cell{Food: 4, Brain: ask}, Diff{ConsumeFood: 1}},
		{"zero quantity", Cell{Food: 4, Money: 9, Brain: gene(brain.Codon{Op: brain.OpOffer, Value: 2})}, Diff{ConsumeFood: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := tt.cell
			diff, moves := Step(rng, testParams(), &cell, &hood)
			assert.Equal(t, tt.want, diff)
			assert.Equal(t, Moves{}, moves)
		})
	}
}

func TestInputsRotationInvariance(t *testing.T) {
	var hood Neighborhood
	for d := range hood {
		hood[d] = Sense{Occupied: d%2 == 0, Wall: d == 3, Food: uint32(10 + d), Money: uint32(100 + d), Signal: float64(d) / 8}
	}
	base := Inputs(&hood, 0, 7, 9, nil)
	require.Len(t, base, NumInputs)
	assert.Equal(t, []float64{7, 9}, base[NumInputs-2:])

	for k := uint8(1); k < 4; k++ {
		var rotated Neighborhood
		for d := brain.Direction(0); d < brain.NumDirections; d++ {
			rotated[d.Rotate(k)] = hood[d]
		}
		assert.Equal(t, base, Inputs(&rotated, k, 7, 9, nil), "orientation %d", k)
	}
}

func TestStepRotationInvariance(t *testing.T) {
	// move toward whichever of relative right or relative up holds more food
	codons := []brain.Codon{
		{Op: brain.OpInput, Arg: int32(brain.Up)*sensesPerNeighbor + 2},
		{Op: brain.OpInput, Arg: int32(brain.Right)*sensesPerNeighbor + 2},
		{Op: brain.OpLess, Arg: 2},
		{Op: brain.OpMove, Dir: brain.Up},
		{Op: brain.OpMove, Dir: brain.Right},
	}
	var hood Neighborhood
	hood[brain.Right].Food = 9
	hood[brain.Up].Food = 3

	for k := uint8(0); k < 4; k++ {
		var rotated Neighborhood
		for d := brain.Direction(0); d < brain.NumDirections; d++ {
			rotated[d.Rotate(k)] = hood[d]
		}
		b := gene(codons...)
		b.Orientation = k
		_, moves := Step(rand.New(rand.NewSource(6)), testParams(), &Cell{Food: 10, Brain: b}, &rotated)
		assert.Same(t, b, moves[brain.Right.Rotate(k)].Brain, "orientation %d", k)
	}
}
