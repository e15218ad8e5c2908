package brain

import (
	"math"
	"math/rand"
)

// Crossover builds a child genome from any number of parents. Parents are split into
// genes, padded with empty genes at random positions to a common length, and each
// slot of the child takes the gene of a randomly chosen parent verbatim.
func Crossover(rng *rand.Rand, parents []*Genome) *Genome {
	order := append([]*Genome(nil), parents...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	split := make([][][]Codon, len(order))
	slots := 0
	for i, p := range order {
		split[i] = p.Genes()
		slots = max(slots, len(split[i]))
	}
	for i := range split {
		for len(split[i]) < slots {
			at := rng.Intn(len(split[i]) + 1)
			split[i] = append(split[i], nil)
			copy(split[i][at+1:], split[i][at:])
			split[i][at] = nil
		}
	}

	child := &Genome{}
	for slot := range slots {
		gene := split[rng.Intn(len(split))][slot]
		if len(gene) == 0 {
			continue
		}
		child.Entries = append(child.Entries, len(child.Sequence))
		child.Sequence = append(child.Sequence, gene...)
	}
	return child
}

// Combine merges several brains into one offspring. Hue is the circular mean of the
// parents' hues, orientation is random and generation is one past the oldest parent.
func Combine(rng *rand.Rand, parents []*Brain) *Brain {
	genomes := make([]*Genome, len(parents))
	var generation uint32
	var params Params
	if len(parents) > 0 {
		params = parents[0].params
	}
	for i, p := range parents {
		genomes[i] = p.genome
		generation = max(generation, p.Generation)
	}
	return &Brain{
		Orientation: uint8(rng.Intn(4)),
		Hue:         meanHue(rng, parents),
		Generation:  generation + 1,
		genome:      Crossover(rng, genomes),
		params:      params,
	}
}

func meanHue(rng *rand.Rand, parents []*Brain) float64 {
	var x, y float64
	for _, p := range parents {
		x += math.Cos(p.Hue)
		y += math.Sin(p.Hue)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.Hypot(x, y) < 1e-9 {
		return rng.Float64() * 2 * math.Pi
	}
	return normalizeHue(math.Atan2(y, x))
}

func normalizeHue(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}
