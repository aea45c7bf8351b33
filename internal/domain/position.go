package domain

// Position is the advisory layout coordinate of a process on the canvas.
// Metrics never depend on it unless layout inference is switched on.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a new position
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// RightOf reports whether p lies strictly to the right of other
func (p Position) RightOf(other Position) bool {
	return p.X > other.X
}
