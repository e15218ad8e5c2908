package brain

import "math/rand"

// Mutate applies one structural edit to the sequence and one to the entries.
// The sequence gains or loses exactly one codon (nothing happens when deleting from
// an empty sequence); the entry list gains or loses at most one offset.
// The receiver must not be shared.
func (g *Genome) Mutate(rng *rand.Rand) {
	dropped := false
	if rng.Float64() < 0.5 {
		g.insertCodon(rng.Intn(len(g.Sequence)+1), RandomCodon(rng))
	} else if len(g.Sequence) > 0 {
		dropped = g.removeCodon(rng.Intn(len(g.Sequence)), rng)
	}

	// an entry lost with its codon counts as this call's entry deletion
	if len(g.Sequence) > 0 && rng.Float64() < 0.5 {
		g.addEntry(rng.Intn(len(g.Sequence)))
	} else if len(g.Entries) > 0 && !dropped {
		i := rng.Intn(len(g.Entries))
		g.Entries = append(g.Entries[:i], g.Entries[i+1:]...)
	}
}

// insertCodon places c at pos, shifting later codons, entries and branch targets.
func (g *Genome) insertCodon(pos int, c Codon) {
	old := len(g.Sequence)
	g.Sequence = append(g.Sequence, Codon{})
	copy(g.Sequence[pos+1:], g.Sequence[pos:])
	g.Sequence[pos] = c

	for i, e := range g.Entries {
		if e >= pos {
			g.Entries[i] = e + 1
		}
	}
	if old == 0 {
		return
	}
	for j := range g.Sequence {
		if j == pos || !g.Sequence[j].Op.branches() {
			continue
		}
		i := j
		if j > pos {
			i--
		}
		t := wrap(i+int(g.Sequence[j].Arg), old)
		if t >= pos {
			t++
		}
		g.Sequence[j].Arg = int32(t - j)
	}
}

// removeCodon deletes the codon at pos. Entries at pos are dropped and branches
// aimed at it get a fresh random offset. It reports whether an entry was dropped.
func (g *Genome) removeCodon(pos int, rng *rand.Rand) bool {
	old := len(g.Sequence)
	g.Sequence = append(g.Sequence[:pos], g.Sequence[pos+1:]...)

	kept := g.Entries[:0]
	for _, e := range g.Entries {
		switch {
		case e == pos:
		case e > pos:
			kept = append(kept, e-1)
		default:
			kept = append(kept, e)
		}
	}
	dropped := len(kept) < len(g.Entries)
	g.Entries = kept

	for j := range g.Sequence {
		if !g.Sequence[j].Op.branches() {
			continue
		}
		i := j
		if j >= pos {
			i++
		}
		t := wrap(i+int(g.Sequence[j].Arg), old)
		switch {
		case t == pos:
			g.Sequence[j].Arg = randomOffset(rng)
			continue
		case t > pos:
			t--
		}
		g.Sequence[j].Arg = int32(t - j)
	}
	return dropped
}
