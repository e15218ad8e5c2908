package brain

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Params controls random genome sampling and trade decoding.
type Params struct {
	LengthScale      float64 // Mean codon count, lengths are exponentially distributed
	EntriesScale     float64 // Mean entry count
	MaxTradeQuantity int
	MaxTradeRate     int
}

// DefaultParams returns the sampling parameters used when no config is given.
func DefaultParams() Params {
	return Params{LengthScale: 64, EntriesScale: 4, MaxTradeQuantity: 64, MaxTradeRate: 1024}
}

// Genome is a codon sequence plus the sorted, unique offsets where genes start.
// A genome reachable from more than one brain must not be modified; use Clone.
type Genome struct {
	Sequence []Codon
	Entries  []int
}

// RandomGenome samples a genome with exponentially distributed length and entry count.
func RandomGenome(rng *rand.Rand, p Params) *Genome {
	n := int(rng.ExpFloat64() * p.LengthScale)
	g := &Genome{Sequence: make([]Codon, n)}
	for i := range g.Sequence {
		g.Sequence[i] = RandomCodon(rng)
	}
	if n == 0 {
		return g
	}
	entries := int(rng.ExpFloat64() * p.EntriesScale)
	for range entries {
		g.addEntry(rng.Intn(n))
	}
	return g
}

// Clone returns a deep copy that can be modified freely.
func (g *Genome) Clone() *Genome {
	return &Genome{
		Sequence: append([]Codon(nil), g.Sequence...),
		Entries:  append([]int(nil), g.Entries...),
	}
}

// Len returns the codon count.
func (g *Genome) Len() int { return len(g.Sequence) }

// Genes splits the sequence at its entries. Code before the first entry forms an
// implicit leading gene. A genome without entries has no genes.
func (g *Genome) Genes() [][]Codon {
	if len(g.Entries) == 0 {
		return nil
	}
	points := make([]int, 0, len(g.Entries)+2)
	if g.Entries[0] != 0 {
		points = append(points, 0)
	}
	points = append(points, g.Entries...)
	points = append(points, len(g.Sequence))

	genes := make([][]Codon, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		genes = append(genes, g.Sequence[points[i]:points[i+1]])
	}
	return genes
}

// Validate checks that entries are sorted, unique and in range.
func (g *Genome) Validate() error {
	for i, e := range g.Entries {
		if e < 0 || e >= len(g.Sequence) {
			return fmt.Errorf("entry %d: offset %d outside sequence of %d", i, e, len(g.Sequence))
		}
		if i > 0 && g.Entries[i-1] >= e {
			return fmt.Errorf("entry %d: offset %d not after %d", i, e, g.Entries[i-1])
		}
	}
	return nil
}

// addEntry inserts offset e keeping entries sorted; duplicates are ignored.
func (g *Genome) addEntry(e int) bool {
	i := sort.SearchInts(g.Entries, e)
	if i < len(g.Entries) && g.Entries[i] == e {
		return false
	}
	g.Entries = append(g.Entries, 0)
	copy(g.Entries[i+1:], g.Entries[i:])
	g.Entries[i] = e
	return true
}

// String disassembles the genome, marking gene starts with '>'.
func (g *Genome) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "genome len=%d entries=%d\n", len(g.Sequence), len(g.Entries))
	next := 0
	for i, c := range g.Sequence {
		mark := ' '
		if next < len(g.Entries) && g.Entries[next] == i {
			mark = '>'
			next++
		}
		fmt.Fprintf(&sb, "%c%4d  %s\n", mark, i, c)
	}
	return sb.String()
}
