package world

import (
	"math/rand"

	"github.com/pthm-cable/evonomics/brain"
)

// Grid is a wrapping, row-major, double-buffered array of cells. Its size is
// fixed at construction.
//
// A tick runs in two passes. StepCell reads the current cells and writes only
// the step result of its own index; UpdateCell reads those results and writes
// only its own slot of the next buffer. Both may run concurrently over disjoint
// indices. Swap then publishes the next buffer.
type Grid struct {
	Width, Height int

	cells   []Cell
	next    []Cell
	results []stepResult
}

type stepResult struct {
	diff  Diff
	moves Moves
}

// NewGrid returns an all-empty grid.
func NewGrid(w, h int) *Grid {
	n := w * h
	return &Grid{
		Width:   w,
		Height:  h,
		cells:   make([]Cell, n),
		next:    make([]Cell, n),
		results: make([]stepResult, n),
	}
}

// Generate builds a grid with maze walls and randomly placed food sources.
func Generate(rng *rand.Rand, w, h, openness int, sourceDensity float64) *Grid {
	g := NewGrid(w, h)
	for i, wall := range GenerateWalls(rng, w, h, openness) {
		switch {
		case wall:
			g.cells[i].Kind = KindWall
		case rng.Float64() < sourceDensity:
			g.cells[i].Kind = KindSource
		}
	}
	return g
}

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// Cells returns the current cells. Callers outside a tick may modify them.
func (g *Grid) Cells() []Cell { return g.cells }

// Cell returns the current cell at index i.
func (g *Grid) Cell(i int) *Cell { return &g.cells[i] }

// Index returns the index of (x, y), wrapping both coordinates.
func (g *Grid) Index(x, y int) int { return wrapIndex(x, y, g.Width, g.Height) }

// Neighbor returns the index of the neighbor of i in direction d.
func (g *Grid) Neighbor(i int, d brain.Direction) int {
	dx, dy := d.Offset()
	return wrapIndex(i%g.Width+dx, i/g.Width+dy, g.Width, g.Height)
}

// Neighborhood snapshots the eight neighbors of i.
func (g *Grid) Neighborhood(i int) Neighborhood {
	var hood Neighborhood
	for d := brain.Direction(0); d < brain.NumDirections; d++ {
		hood[d] = senseOf(&g.cells[g.Neighbor(i, d)])
	}
	return hood
}

// StepCell runs the step pass for cell i.
func (g *Grid) StepCell(rng *rand.Rand, p *Params, i int) {
	hood := g.Neighborhood(i)
	r := &g.results[i]
	r.diff, r.moves = Step(rng, p, &g.cells[i], &hood)
}

// UpdateCell runs the update pass for cell i, gathering what each neighbor sent toward it.
func (g *Grid) UpdateCell(rng *rand.Rand, p *Params, i int, ev *Events) {
	var in Moves
	for d := brain.Direction(0); d < brain.NumDirections; d++ {
		in[d] = g.results[g.Neighbor(i, d)].moves[d.Opposite()]
	}
	g.next[i] = Update(rng, p, g.cells[i], g.results[i].diff, &in, ev)
}

// Swap publishes the update pass.
func (g *Grid) Swap() {
	g.cells, g.next = g.next, g.cells
	clear(g.results)
}

// Agents counts occupied cells.
func (g *Grid) Agents() int {
	n := 0
	for i := range g.cells {
		if g.cells[i].Brain != nil {
			n++
		}
	}
	return n
}

// TotalMoney sums money over every cell, walls included.
func (g *Grid) TotalMoney() uint64 {
	var total uint64
	for i := range g.cells {
		total += uint64(g.cells[i].Money)
	}
	return total
}

// SweepWalls removes money that landed on walls and returns the amount.
func (g *Grid) SweepWalls() uint64 {
	var swept uint64
	for i := range g.cells {
		c := &g.cells[i]
		if c.Kind == KindWall && c.Money > 0 {
			swept += uint64(c.Money)
			c.Money = 0
		}
	}
	return swept
}

// TakeTrades collects and clears every active trade intent, calling fn for each.
func (g *Grid) TakeTrades(fn func(cell int, t TradeIntent)) {
	for i := range g.cells {
		c := &g.cells[i]
		if c.Trade.Active() {
			fn(i, c.Trade)
			c.Trade = TradeIntent{}
		}
	}
}

// Food returns the food held by cell i.
func (g *Grid) Food(i int) uint32 { return g.cells[i].Food }

// Money returns the money held by cell i.
func (g *Grid) Money(i int) uint32 { return g.cells[i].Money }

// AddFood credits food to cell i.
func (g *Grid) AddFood(i int, n uint32) { g.cells[i].Food += n }

// TakeFood debits food from cell i, saturating at zero.
func (g *Grid) TakeFood(i int, n uint32) { g.cells[i].Food = subSat(g.cells[i].Food, n) }

// AddMoney credits money to cell i.
func (g *Grid) AddMoney(i int, n uint32) { g.cells[i].Money += n }

// Occupant returns the occupant stamp of cell i.
func (g *Grid) Occupant(i int) uint64 { return g.cells[i].Occupant }

// TakeMoney debits money from cell i. Callers check the balance first.
func (g *Grid) TakeMoney(i int, n uint32) { g.cells[i].Money -= n }
