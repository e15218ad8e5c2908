// Package world holds the cellular grid and the two-phase step/update rules that
// move food, money and brains between cells.
package world

import (
	"image/color"
	"math"

	"github.com/pthm-cable/evonomics/brain"
)

// Kind is the immutable terrain type of a cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindWall
	KindSource
)

func (k Kind) String() string {
	switch k {
	case KindWall:
		return "wall"
	case KindSource:
		return "source"
	default:
		return "empty"
	}
}

// TradeIntent is an order a brain placed this tick. Quantity < 0 bids for food,
// > 0 asks, 0 means no order.
type TradeIntent struct {
	Quantity int
	Rate     int
}

// Active reports whether the intent carries an order.
func (t TradeIntent) Active() bool { return t.Quantity != 0 }

// Cell is one grid square. A cell owns its occupant brain exclusively.
type Cell struct {
	Food   uint32
	Money  uint32
	Kind   Kind
	Signal float64
	Brain  *brain.Brain
	Trade  TradeIntent

	// Occupant is bumped every time Brain changes identity, so orders placed
	// by a previous occupant can be told apart from the current one.
	Occupant uint64
}

// Occupied reports whether a brain lives in the cell.
func (c *Cell) Occupied() bool { return c.Brain != nil }

const (
	foodColorScale  = 0.1
	moneyColorScale = 0.02
	sourceTint      = 0.35
)

var wallColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}

// Color is the display color: occupant hue, wall grey, or food (green) and
// money (blue) for vacant cells.
func (c *Cell) Color() color.RGBA {
	switch {
	case c.Kind == KindWall:
		return wallColor
	case c.Brain != nil:
		return hueColor(c.Brain.Hue)
	}
	g := math.Min(1, float64(c.Food)*foodColorScale)
	b := math.Min(1, float64(c.Money)*moneyColorScale)
	if c.Kind == KindSource {
		b = math.Min(1, b+sourceTint)
	}
	return color.RGBA{G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// hueColor converts a hue in radians to a fully saturated RGB color.
func hueColor(hue float64) color.RGBA {
	h := math.Mod(hue/(2*math.Pi)*6, 6)
	if h < 0 || math.IsNaN(h) {
		h = 0
	}
	x := 1 - math.Abs(math.Mod(h, 2)-1)
	var r, g, b float64
	switch int(h) {
	case 0:
		r, g = 1, x
	case 1:
		r, g = x, 1
	case 2:
		g, b = 1, x
	case 3:
		g, b = x, 1
	case 4:
		r, b = x, 1
	default:
		r, b = 1, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
