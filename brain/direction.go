package brain

// Direction is one of the eight Moore neighbors, counter-clockwise from Right.
// Screen coordinates: y grows downward.
type Direction uint8

const (
	Right Direction = iota
	UpRight
	Up
	UpLeft
	Left
	DownLeft
	Down
	DownRight

	NumDirections = 8
)

var directionNames = [NumDirections]string{
	"right", "up-right", "up", "up-left", "left", "down-left", "down", "down-right",
}

var directionOffsets = [NumDirections][2]int{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

func (d Direction) String() string {
	return directionNames[d%NumDirections]
}

// Offset returns the (dx, dy) step for the direction.
func (d Direction) Offset() (dx, dy int) {
	o := directionOffsets[d%NumDirections]
	return o[0], o[1]
}

// Rotate turns the direction counter-clockwise by the given number of quarter turns.
func (d Direction) Rotate(quarters uint8) Direction {
	return (d + Direction(quarters%4)*2) % NumDirections
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction {
	return (d + 4) % NumDirections
}
