package court

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Float32Epsilon is the machine epsilon of a float32, the default geometric tolerance.
const Float32Epsilon = 0x1p-23

// Tolerance carries the numerical epsilon used by orientation, intercept and
// singularity tests. It is passed explicitly so tests can move the boundary.
type Tolerance struct {
	Epsilon float64 `yaml:"eps" json:"eps"`
}

// DefaultTolerance returns the float32 machine epsilon tolerance.
func DefaultTolerance() Tolerance {
	return Tolerance{Epsilon: Float32Epsilon}
}

func (t Tolerance) eps() float64 {
	if t.Epsilon <= 0 {
		return Float32Epsilon
	}
	return t.Epsilon
}

// HoughNormal returns the unit normal (cos theta, sin theta) of a Hough line.
func HoughNormal(theta float64) r2.Point {
	return r2.Point{X: math.Cos(theta), Y: math.Sin(theta)}
}

// ClosestPoint returns the point on the line x*cos(theta) + y*sin(theta) = rho
// nearest to p. A line through the origin (rho = 0) is handled like any other.
func ClosestPoint(rho, theta float64, p r2.Point) r2.Point {
	n := HoughNormal(theta)
	return p.Sub(n.Mul(p.Dot(n) - rho))
}

// DistanceToLine returns the perpendicular distance from p to the Hough line.
func DistanceToLine(rho, theta float64, p r2.Point) float64 {
	return ClosestPoint(rho, theta, p).Sub(p).Norm()
}

// LinesIntersection solves the 2x2 system formed by two Hough lines.
// Parallel or identical lines fail with ErrDegenerateGeometry.
func LinesIntersection(rho1, theta1, rho2, theta2 float64, tol Tolerance) (r2.Point, error) {
	c1, s1 := math.Cos(theta1), math.Sin(theta1)
	c2, s2 := math.Cos(theta2), math.Sin(theta2)

	det := c1*s2 - s1*c2
	if math.Abs(det) < tol.eps() {
		return r2.Point{}, fmt.Errorf("intersecting lines (%.3f, %.4f) and (%.3f, %.4f): %w",
			rho1, theta1, rho2, theta2, ErrDegenerateGeometry)
	}

	// Cramer's rule
	return r2.Point{
		X: (rho1*s2 - s1*rho2) / det,
		Y: (c1*rho2 - rho1*c2) / det,
	}, nil
}

// angleDistance returns the angle between two line normals in radians, in [0, pi].
// Two thetas naming the same line modulo 2*pi are at distance zero. Unlike a plain
// |theta1-theta2| mod pi, normals pointing in opposite directions are pi apart.
func angleDistance(theta1, theta2 float64) float64 {
	return math.Abs(math.Remainder(theta1-theta2, 2*math.Pi))
}
