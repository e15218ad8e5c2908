package world

import "github.com/pthm-cable/evonomics/brain"

// Sense is the read-only snapshot of a neighboring cell. It deliberately carries
// no brain pointer.
type Sense struct {
	Occupied bool
	Wall     bool
	Food     uint32
	Money    uint32
	Signal   float64
}

// Neighborhood holds the eight Moore neighbors indexed by absolute direction.
type Neighborhood [brain.NumDirections]Sense

const (
	sensesPerNeighbor = 5
	// NumInputs is the length of the sensory vector.
	NumInputs = brain.NumDirections*sensesPerNeighbor + 2
)

func senseOf(c *Cell) Sense {
	return Sense{
		Occupied: c.Brain != nil,
		Wall:     c.Kind == KindWall,
		Food:     c.Food,
		Money:    c.Money,
		Signal:   c.Signal,
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Inputs builds the sensory vector into buf. Slot r of the neighbor block reads
// the absolute direction r rotated by the orientation, so every brain perceives
// its own heading as Right. Own food and money follow the neighbor block.
func Inputs(hood *Neighborhood, orientation uint8, food, money uint32, buf []float64) []float64 {
	buf = buf[:0]
	for r := brain.Direction(0); r < brain.NumDirections; r++ {
		s := &hood[r.Rotate(orientation)]
		buf = append(buf, flag(s.Occupied), flag(s.Wall), float64(s.Food), s.Signal, float64(s.Money))
	}
	return append(buf, float64(food), float64(money))
}
