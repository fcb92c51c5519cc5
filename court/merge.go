package court

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// FitLine fits m*x + p*y = 1 to points by least squares on the normal equations
// (AᵗA)⁻¹Aᵗb. This form represents vertical lines without a special case but
// cannot represent a line through the origin, which surfaces as a singular AᵗA.
func FitLine(points []r2.Point, tol Tolerance) (m, p float64, err error) {
	if len(points) < 2 {
		return 0, 0, fmt.Errorf("fitting line to %d points: %w", len(points), ErrDegenerateGeometry)
	}
	if spread(points) < tol.eps() {
		return 0, 0, fmt.Errorf("fitting line to coincident points: %w", ErrDegenerateGeometry)
	}

	a := mat.NewDense(len(points), 2, nil)
	b := mat.NewVecDense(len(points), nil)
	for i, pt := range points {
		a.Set(i, 0, pt.X)
		a.Set(i, 1, pt.Y)
		b.SetVec(i, 1)
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	if cond := mat.Cond(&ata, 2); math.IsInf(cond, 1) || cond*tol.eps() > 1 {
		return 0, 0, fmt.Errorf("fitting line: normal equations condition %.3g: %w", cond, ErrDegenerateGeometry)
	}

	var x mat.VecDense
	if err := x.SolveVec(&ata, &atb); err != nil {
		var condErr mat.Condition
		if !errors.As(err, &condErr) {
			return 0, 0, fmt.Errorf("fitting line: %v: %w", err, ErrDegenerateGeometry)
		}
	}

	m, p = x.AtVec(0), x.AtVec(1)
	if math.IsNaN(m) || math.IsNaN(p) || (m == 0 && p == 0) {
		return 0, 0, fmt.Errorf("fitting line: no solution: %w", ErrDegenerateGeometry)
	}
	return m, p, nil
}

// MergeSegments refits every endpoint of segments to one line and returns the
// segment spanning the extreme endpoints, both projected onto the fitted line.
// Near-vertical fits (|p| < eps) take the extremes along y, all others along x.
func MergeSegments(segments []LineSegment, tol Tolerance) (LineSegment, error) {
	points := make([]r2.Point, 0, 2*len(segments))
	for _, s := range segments {
		points = append(points, s.p1, s.p2)
	}

	m, p, err := FitLine(points, tol)
	if err != nil {
		return LineSegment{}, err
	}

	theta := math.Atan2(p, m)
	var rho float64
	var lo, hi r2.Point
	if math.Abs(p) < tol.eps() {
		lo, hi = extremes(points, func(pt r2.Point) float64 { return pt.Y })
		rho = math.Cos(theta) / m
	} else {
		lo, hi = extremes(points, func(pt r2.Point) float64 { return pt.X })
		rho = math.Sin(theta) / p
	}

	return SegmentFromPoints(ClosestPoint(rho, theta, lo), ClosestPoint(rho, theta, hi), tol), nil
}

// extremes returns the first points with the minimum and maximum key.
func extremes(points []r2.Point, key func(r2.Point) float64) (lo, hi r2.Point) {
	lo, hi = points[0], points[0]
	for _, pt := range points[1:] {
		if key(pt) < key(lo) {
			lo = pt
		}
		if key(pt) > key(hi) {
			hi = pt
		}
	}
	return lo, hi
}

// spread is the diagonal of the points' bounding box.
func spread(points []r2.Point) float64 {
	mp := make(orb.MultiPoint, len(points))
	for i, pt := range points {
		mp[i] = orb.Point{pt.X, pt.Y}
	}
	b := mp.Bound()
	return math.Hypot(b.Max.X()-b.Min.X(), b.Max.Y()-b.Min.Y())
}
