package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point is a 2D coordinate in whatever space its source uses.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Angle returns the angle at vertex b between rays b->a and b->c, in degrees within [0, 180].
// Coincident points are not flagged: atan2(0, 0) is 0 and the result follows from the other ray.
func Angle(a, b, c Point) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360.0 - angle
	}
	return angle
}

// Distance is the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return floats.Distance([]float64{p.X, p.Y}, []float64{q.X, q.Y}, 2)
}
