package brain

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsGene(pool [][]Codon, gene []Codon) bool {
	for _, g := range pool {
		if slices.Equal(g, gene) {
			return true
		}
	}
	return false
}

func TestCrossoverGeneConservation(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		n := 2 + rng.Intn(3)
		parents := make([]*Genome, n)
		var pool [][]Codon
		slots := 0
		for i := range parents {
			parents[i] = RandomGenome(rng, DefaultParams())
			gs := parents[i].Genes()
			pool = append(pool, gs...)
			slots = max(slots, len(gs))
		}

		child := Crossover(rng, parents)
		require.NoError(t, child.Validate(), "seed %d", seed)

		childGenes := child.Genes()
		assert.LessOrEqual(t, len(childGenes), slots, "seed %d", seed)
		assert.Len(t, child.Entries, len(childGenes))
		for _, g := range childGenes {
			assert.True(t, containsGene(pool, g), "seed %d: gene %v not found in any parent", seed, g)
		}
	}
}

func TestCrossoverEqualGeneCounts(t *testing.T) {
	a := genes([]Codon{move(Right)}, []Codon{lit(1), op(OpWrite, 0)}, []Codon{op(OpNothing, 0)})
	b := genes([]Codon{move(Left), lit(2)}, []Codon{op(OpRotateLeft, 0)}, []Codon{lit(3), op(OpWrite, 1)})

	for seed := int64(0); seed < 50; seed++ {
		child := Crossover(rand.New(rand.NewSource(seed)), []*Genome{a, b})
		childGenes := child.Genes()
		require.Len(t, childGenes, 3)
		for slot, g := range childGenes {
			ok := slices.Equal(g, a.Genes()[slot]) || slices.Equal(g, b.Genes()[slot])
			assert.True(t, ok, "seed %d slot %d", seed, slot)
		}
	}
}

func TestCrossoverImplicitLeadingGene(t *testing.T) {
	g := &Genome{Sequence: []Codon{lit(1), move(Up), move(Down)}, Entries: []int{2}}
	got := g.Genes()
	require.Len(t, got, 2)
	assert.Equal(t, []Codon{lit(1), move(Up)}, got[0])
	assert.Equal(t, []Codon{move(Down)}, got[1])
}

func TestCrossoverWithoutGenes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	noEntries := &Genome{Sequence: []Codon{move(Up)}}
	child := Crossover(rng, []*Genome{noEntries, {}})
	assert.Empty(t, child.Sequence)
	assert.Empty(t, child.Entries)
}

func TestCombine(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := New(genes([]Codon{move(Right)}), DefaultParams())
	b := New(genes([]Codon{move(Left)}), DefaultParams())
	a.Hue, b.Hue = 0.1, 0.3
	a.Generation, b.Generation = 3, 7
	a.Memory[0] = 5

	child := Combine(rng, []*Brain{a, b})
	assert.Equal(t, uint32(8), child.Generation)
	assert.InDelta(t, 0.2, child.Hue, 1e-9)
	assert.Less(t, child.Orientation, uint8(4))
	assert.Equal(t, [NumState]float64{}, child.Memory)
	require.NoError(t, child.Genome().Validate())
	assert.Len(t, child.Genome().Entries, 1)
}

func TestCombineHueWrapsAround(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := New(&Genome{}, DefaultParams())
	b := New(&Genome{}, DefaultParams())
	a.Hue, b.Hue = 2*math.Pi-0.1, 0.1

	hue := Combine(rng, []*Brain{a, b}).Hue
	assert.True(t, hue < 1e-9 || hue > 2*math.Pi-1e-9, "hue %v", hue)
}

func TestCombineDegenerateHue(t *testing.T) {
	a := New(&Genome{}, DefaultParams())
	b := New(&Genome{}, DefaultParams())
	a.Hue, b.Hue = 0, math.Pi

	for seed := int64(0); seed < 20; seed++ {
		hue := Combine(rand.New(rand.NewSource(seed)), []*Brain{a, b}).Hue
		assert.False(t, math.IsNaN(hue))
		assert.GreaterOrEqual(t, hue, 0.0)
		assert.Less(t, hue, 2*math.Pi)
	}

	a.Hue = math.NaN()
	hue := Combine(rand.New(rand.NewSource(1)), []*Brain{a, b}).Hue
	assert.False(t, math.IsNaN(hue))
}
