package court

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Orientation is a thresholded classification of a segment's slope.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// RawSegment is a segment as reported by a detector: x1, y1, x2, y2.
type RawSegment [4]float64

// LineSegment is a directed 2D segment with its Hough parameters and intercepts
// computed once at construction. It is never mutated; merging builds a new one.
type LineSegment struct {
	p1, p2 r2.Point

	rho, theta float64
	slope      float64
	xIntercept float64
	yIntercept float64
	length     float64
}

// NewLineSegment builds a segment from (x1, y1) to (x2, y2).
// Slope and intercepts are +Inf when their denominator is within tol of zero.
func NewLineSegment(x1, y1, x2, y2 float64, tol Tolerance) LineSegment {
	s := LineSegment{
		p1: r2.Point{X: x1, Y: y1},
		p2: r2.Point{X: x2, Y: y2},
	}
	dx, dy := x2-x1, y2-y1
	eps := tol.eps()

	s.theta = math.Pi - math.Atan2(dx, dy)
	s.rho = x1*math.Cos(s.theta) + y1*math.Sin(s.theta)
	if s.rho < 0 {
		s.rho = -s.rho
		s.theta -= math.Pi
	}
	if s.theta > math.Pi {
		s.theta -= 2 * math.Pi
	} else if s.theta <= -math.Pi {
		s.theta += 2 * math.Pi
	}

	s.slope = math.Inf(1)
	s.yIntercept = math.Inf(1)
	if math.Abs(dx) > eps {
		s.slope = dy / dx
		s.yIntercept = y1 - x1*dy/dx
	}
	s.xIntercept = math.Inf(1)
	if math.Abs(dy) > eps {
		s.xIntercept = x1 - y1*dx/dy
	}
	s.length = math.Hypot(dx, dy)
	return s
}

// SegmentFromPoints builds a segment between two points.
func SegmentFromPoints(p1, p2 r2.Point, tol Tolerance) LineSegment {
	return NewLineSegment(p1.X, p1.Y, p2.X, p2.Y, tol)
}

// SegmentsFromRaw converts detector output into segments.
func SegmentsFromRaw(raw []RawSegment, tol Tolerance) []LineSegment {
	segments := make([]LineSegment, len(raw))
	for i, r := range raw {
		segments[i] = NewLineSegment(r[0], r[1], r[2], r[3], tol)
	}
	return segments
}

func (s LineSegment) P1() r2.Point          { return s.p1 }
func (s LineSegment) P2() r2.Point          { return s.p2 }
func (s LineSegment) Rho() float64          { return s.rho }
func (s LineSegment) Theta() float64        { return s.theta }
func (s LineSegment) Slope() float64        { return s.slope }
func (s LineSegment) XIntercept() float64   { return s.xIntercept }
func (s LineSegment) YIntercept() float64   { return s.yIntercept }
func (s LineSegment) Length() float64       { return s.length }
func (s LineSegment) Raw() RawSegment       { return RawSegment{s.p1.X, s.p1.Y, s.p2.X, s.p2.Y} }
func (s LineSegment) Endpoints() []r2.Point { return []r2.Point{s.p1, s.p2} }

// Orientation is Vertical when |slope| > 1, Horizontal otherwise.
func (s LineSegment) Orientation() Orientation {
	if math.Abs(s.slope) > 1.0 {
		return Vertical
	}
	return Horizontal
}

// Midpoint returns the middle of the segment.
func (s LineSegment) Midpoint() r2.Point {
	return s.p1.Add(s.p2).Mul(0.5)
}

// DistanceTo returns the distance from p to the segment's infinite line.
func (s LineSegment) DistanceTo(p r2.Point) float64 {
	return DistanceToLine(s.rho, s.theta, p)
}

// IntersectWith intersects the infinite lines through both segments.
func (s LineSegment) IntersectWith(other LineSegment, tol Tolerance) (r2.Point, error) {
	return LinesIntersection(s.rho, s.theta, other.rho, other.theta, tol)
}

func (s LineSegment) String() string {
	return fmt.Sprintf("LineSegment(%.1f,%.1f -> %.1f,%.1f |%.1f| %.1fdeg)",
		s.p1.X, s.p1.Y, s.p2.X, s.p2.Y, s.rho, s.theta*180/math.Pi)
}

type segmentJSON struct {
	X1          float64     `json:"x1"`
	Y1          float64     `json:"y1"`
	X2          float64     `json:"x2"`
	Y2          float64     `json:"y2"`
	Rho         float64     `json:"rho"`
	Theta       float64     `json:"theta"`
	Orientation Orientation `json:"orientation"`
	Length      float64     `json:"length"`
}

// MarshalJSON exposes the endpoints and derived Hough parameters.
func (s LineSegment) MarshalJSON() ([]byte, error) {
	return json.Marshal(segmentJSON{
		X1: s.p1.X, Y1: s.p1.Y, X2: s.p2.X, Y2: s.p2.Y,
		Rho:         s.rho,
		Theta:       s.theta,
		Orientation: s.Orientation(),
		Length:      s.length,
	})
}

// UnmarshalJSON rebuilds the segment from its endpoints; derived fields are
// recomputed with the default tolerance.
func (s *LineSegment) UnmarshalJSON(data []byte) error {
	var raw segmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewLineSegment(raw.X1, raw.Y1, raw.X2, raw.Y2, DefaultTolerance())
	return nil
}
