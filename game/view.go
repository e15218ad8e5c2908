package game

import (
	"image/color"
)

// View is a render-ready snapshot of the grid after a batch of ticks.
type View struct {
	Tick        uint64       `json:"tick"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Colors      []color.RGBA `json:"colors"`
	Generations []uint32     `json:"generations"` // 0 for vacant cells
	Agents      int          `json:"agents"`
	Ticks       int          `json:"ticks"` // ticks this view represents
}

// View captures the current grid. ticks is the number of ticks since the
// previous view.
func (s *Simulation) View(ticks int) View {
	n := s.grid.Len()
	v := View{
		Tick:        s.tick,
		Width:       s.grid.Width,
		Height:      s.grid.Height,
		Colors:      make([]color.RGBA, n),
		Generations: make([]uint32, n),
		Ticks:       ticks,
	}
	for i := range n {
		c := s.grid.Cell(i)
		v.Colors[i] = c.Color()
		if c.Occupied() {
			v.Generations[i] = c.Brain.Generation
			v.Agents++
		}
	}
	return v
}
