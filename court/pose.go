package court

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// PoseEstimator recovers a camera from planar world-to-image correspondences.
type PoseEstimator interface {
	Estimate(world []r3.Vector, image []r2.Point, width, height int) (*Calibration, error)
}

// Intrinsics use a single focal length and zero skew.
type Intrinsics struct {
	Focal float64 `json:"focal"`
	Cx    float64 `json:"cx"`
	Cy    float64 `json:"cy"`
}

// Calibration is a pinhole camera with no distortion: x_cam = R*X + t.
type Calibration struct {
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	Intrinsics     Intrinsics `json:"intrinsics"`
	Rotation       [9]float64 `json:"rotation"` // row major
	RotationVector r3.Vector  `json:"rotationVector"`
	Translation    r3.Vector  `json:"translation"`
	RMSError       float64    `json:"rmsError"` // pixels
}

// Project maps a world point into the image.
func (c *Calibration) Project(world r3.Vector) r2.Point {
	return projectPoint(c.Intrinsics, c.Rotation, c.Translation, world)
}

// CameraMatrix returns K.
func (c *Calibration) CameraMatrix() *mat.Dense {
	k := c.Intrinsics
	return mat.NewDense(3, 3, []float64{
		k.Focal, 0, k.Cx,
		0, k.Focal, k.Cy,
		0, 0, 1,
	})
}

// Position returns the camera center in world coordinates, -R^T * t.
func (c *Calibration) Position() r3.Vector {
	r, t := c.Rotation, c.Translation
	return r3.Vector{
		X: -(r[0]*t.X + r[3]*t.Y + r[6]*t.Z),
		Y: -(r[1]*t.X + r[4]*t.Y + r[7]*t.Z),
		Z: -(r[2]*t.X + r[5]*t.Y + r[8]*t.Z),
	}
}

// PoseConfig toggles the non-linear refinement step.
type PoseConfig struct {
	Refine bool `yaml:"refine" json:"refine"`
}

// PlanarPoseEstimator solves a plane-to-image homography and decomposes it under a
// fixed aspect ratio, a principal point at the image center and no distortion.
type PlanarPoseEstimator struct {
	Refine    bool
	Tolerance Tolerance
}

// NewPlanarPoseEstimator returns an estimator configured by cfg.
func NewPlanarPoseEstimator(cfg PoseConfig, tol Tolerance) *PlanarPoseEstimator {
	return &PlanarPoseEstimator{Refine: cfg.Refine, Tolerance: tol}
}

// Estimate requires at least four correspondences with z = 0 world points.
func (e *PlanarPoseEstimator) Estimate(world []r3.Vector, image []r2.Point, width, height int) (*Calibration, error) {
	if len(world) != len(image) {
		return nil, fmt.Errorf("%d world points vs %d image points: %w", len(world), len(image), ErrInsufficientData)
	}
	if len(world) < 4 {
		return nil, fmt.Errorf("pose needs at least 4 correspondences, got %d: %w", len(world), ErrInsufficientData)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d: %w", width, height, ErrInsufficientData)
	}

	plane := make([]r2.Point, len(world))
	for i, w := range world {
		if math.Abs(w.Z) > 1e-9 {
			return nil, fmt.Errorf("world point %d is off the court plane (z=%g): %w", i, w.Z, ErrDegenerateGeometry)
		}
		plane[i] = r2.Point{X: w.X, Y: w.Y}
	}
	if collinear(plane) {
		return nil, fmt.Errorf("world points are collinear: %w", ErrDegenerateGeometry)
	}
	if collinear(image) {
		return nil, fmt.Errorf("image points are collinear: %w", ErrDegenerateGeometry)
	}

	h, err := EstimateHomography(plane, image)
	if err != nil {
		return nil, err
	}

	cx, cy := float64(width)/2, float64(height)/2
	focal, err := focalFromHomography(h, cx, cy)
	if err != nil {
		return nil, err
	}
	k := Intrinsics{Focal: focal, Cx: cx, Cy: cy}
	rot, t, err := extrinsicsFromHomography(h, k)
	if err != nil {
		return nil, err
	}

	calib := &Calibration{
		Width:          width,
		Height:         height,
		Intrinsics:     k,
		Rotation:       rot,
		RotationVector: RotationToVector(rot),
		Translation:    t,
	}
	calib.RMSError = reprojectionRMS(calib.Intrinsics, calib.Rotation, calib.Translation, world, image)

	if e.Refine {
		refine(calib, world, image)
	}
	return calib, nil
}

// EstimateHomography solves H with s*[u v 1] = H*[X Y 1] by normalized DLT.
func EstimateHomography(src, dst []r2.Point) (*mat.Dense, error) {
	if len(src) != len(dst) || len(src) < 4 {
		return nil, fmt.Errorf("homography needs 4 matching points, got %d and %d: %w", len(src), len(dst), ErrInsufficientData)
	}
	ns, ts := normalizePoints(src)
	nd, td := normalizePoints(dst)

	a := mat.NewDense(2*len(src), 9, nil)
	for i := range ns {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, fmt.Errorf("homography SVD failed: %w", ErrDegenerateGeometry)
	}
	values := svd.Values(nil)
	// rank 8 is required for a unique null vector
	if values[0] == 0 || values[7]/values[0] < 1e-10 {
		return nil, fmt.Errorf("homography is under-determined: %w", ErrDegenerateGeometry)
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// H = Td^-1 * Hn * Ts
	var tdInv, h mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return nil, fmt.Errorf("inverting normalization: %w", ErrDegenerateGeometry)
	}
	h.Mul(&tdInv, hn)
	h.Mul(&h, ts)
	if math.Abs(h.At(2, 2)) > 1e-12 {
		h.Scale(1/h.At(2, 2), &h)
	}
	return &h, nil
}

// normalizePoints centers points on their centroid and scales their mean distance
// to sqrt(2) (Hartley normalization).
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	var mu r2.Point
	for _, p := range pts {
		mu = mu.Add(p)
	}
	mu = mu.Mul(1 / float64(len(pts)))

	d := 0.0
	for _, p := range pts {
		d += p.Sub(mu).Norm()
	}
	d /= float64(len(pts))
	scale := 1.0
	if d > 0 {
		scale = math.Sqrt2 / d
	}

	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = p.Sub(mu).Mul(scale)
	}
	return out, mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
}

// collinear reports whether every point lies on one line, relative to the spread
// of the set.
func collinear(pts []r2.Point) bool {
	normalized, _ := normalizePoints(pts)
	maxArea := 0.0
	for i := 0; i < len(normalized); i++ {
		for j := i + 1; j < len(normalized); j++ {
			for k := j + 1; k < len(normalized); k++ {
				area := math.Abs(normalized[j].Sub(normalized[i]).Cross(normalized[k].Sub(normalized[i])))
				maxArea = math.Max(maxArea, area)
			}
		}
	}
	return maxArea < 1e-9
}

// focalFromHomography solves the two orthogonality constraints on the rotation
// columns for w = 1/f^2 in least squares.
func focalFromHomography(h *mat.Dense, cx, cy float64) (float64, error) {
	// remove the principal point: H' = [[1 0 -cx] [0 1 -cy] [0 0 1]] * H
	var hp mat.Dense
	hp.Mul(mat.NewDense(3, 3, []float64{1, 0, -cx, 0, 1, -cy, 0, 0, 1}), h)
	hp.Scale(1/mat.Norm(&hp, 2), &hp)

	h11, h12 := hp.At(0, 0), hp.At(0, 1)
	h21, h22 := hp.At(1, 0), hp.At(1, 1)
	h31, h32 := hp.At(2, 0), hp.At(2, 1)
	if math.Hypot(h31, h32) < 1e-9 {
		return 0, fmt.Errorf("focal length is unobservable in a fronto-parallel view: %w", ErrDegenerateGeometry)
	}

	a1 := h11*h12 + h21*h22
	b1 := h31 * h32
	a2 := h11*h11 + h21*h21 - h12*h12 - h22*h22
	b2 := h31*h31 - h32*h32

	den := a1*a1 + a2*a2
	if den < 1e-24 {
		return 0, fmt.Errorf("focal length is unobservable: %w", ErrDegenerateGeometry)
	}
	w := -(a1*b1 + a2*b2) / den
	if w <= 0 || math.IsNaN(w) {
		return 0, fmt.Errorf("focal length is unobservable (1/f^2 = %g): %w", w, ErrDegenerateGeometry)
	}
	return 1 / math.Sqrt(w), nil
}

// extrinsicsFromHomography decomposes K^-1 * H = lambda * [r1 r2 t].
func extrinsicsFromHomography(h *mat.Dense, k Intrinsics) ([9]float64, r3.Vector, error) {
	var rot [9]float64
	kInv := mat.NewDense(3, 3, []float64{
		1 / k.Focal, 0, -k.Cx / k.Focal,
		0, 1 / k.Focal, -k.Cy / k.Focal,
		0, 0, 1,
	})
	var m mat.Dense
	m.Mul(kInv, h)

	col := func(j int) r3.Vector {
		return r3.Vector{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
	}
	m1, m2, m3 := col(0), col(1), col(2)
	norm := (m1.Norm() + m2.Norm()) / 2
	if norm < 1e-12 {
		return rot, r3.Vector{}, fmt.Errorf("homography has no rotation component: %w", ErrDegenerateGeometry)
	}
	lambda := 1 / norm
	if m3.Z < 0 {
		lambda = -lambda
	}
	r1, r2, t := m1.Mul(lambda), m2.Mul(lambda), m3.Mul(lambda)
	r3v := r1.Cross(r2)

	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	var svd mat.SVD
	if !svd.Factorize(approx, mat.SVDFull) {
		return rot, r3.Vector{}, fmt.Errorf("rotation SVD failed: %w", ErrDegenerateGeometry)
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	for i := 0; i < 9; i++ {
		rot[i] = r.At(i/3, i%3)
	}
	return rot, t, nil
}

func projectPoint(k Intrinsics, rot [9]float64, t, w r3.Vector) r2.Point {
	x := rot[0]*w.X + rot[1]*w.Y + rot[2]*w.Z + t.X
	y := rot[3]*w.X + rot[4]*w.Y + rot[5]*w.Z + t.Y
	z := rot[6]*w.X + rot[7]*w.Y + rot[8]*w.Z + t.Z
	return r2.Point{X: k.Focal*x/z + k.Cx, Y: k.Focal*y/z + k.Cy}
}

func reprojectionRMS(k Intrinsics, rot [9]float64, t r3.Vector, world []r3.Vector, image []r2.Point) float64 {
	sum := 0.0
	for i, w := range world {
		d := projectPoint(k, rot, t, w).Sub(image[i])
		sum += d.Dot(d)
	}
	return math.Sqrt(sum / float64(len(world)))
}

// refine minimizes the reprojection error over focal, rotation vector and
// translation. The closed-form solution is kept unless the refined one is better.
func refine(c *Calibration, world []r3.Vector, image []r2.Point) {
	f0 := c.Intrinsics.Focal
	s0 := c.Translation.Norm()
	if f0 <= 0 || s0 <= 0 {
		return
	}
	unpack := func(x []float64) (Intrinsics, [9]float64, r3.Vector) {
		k := Intrinsics{Focal: x[0] * f0, Cx: c.Intrinsics.Cx, Cy: c.Intrinsics.Cy}
		rot := VectorToRotation(r3.Vector{X: x[1], Y: x[2], Z: x[3]})
		t := r3.Vector{X: x[4] * s0, Y: x[5] * s0, Z: x[6] * s0}
		return k, rot, t
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			k, rot, t := unpack(x)
			if k.Focal <= 0 {
				return math.Inf(1)
			}
			return reprojectionRMS(k, rot, t, world, image)
		},
	}
	rv, t := c.RotationVector, c.Translation
	x0 := []float64{1, rv.X, rv.Y, rv.Z, t.X / s0, t.Y / s0, t.Z / s0}
	result, _ := optimize.Minimize(problem, x0, &optimize.Settings{FuncEvaluations: 4000}, &optimize.NelderMead{})
	if result == nil || math.IsNaN(result.F) || result.F >= c.RMSError {
		return
	}
	k, rot, tr := unpack(result.X)
	c.Intrinsics = k
	c.Rotation = rot
	c.RotationVector = RotationToVector(rot)
	c.Translation = tr
	c.RMSError = result.F
}

// VectorToRotation converts an axis-angle vector into a row-major rotation matrix.
func VectorToRotation(v r3.Vector) [9]float64 {
	theta := v.Norm()
	if theta < 1e-12 {
		return [9]float64{1, -v.Z, v.Y, v.Z, 1, -v.X, -v.Y, v.X, 1}
	}
	k := v.Mul(1 / theta)
	s, c := math.Sin(theta), math.Cos(theta)
	oc := 1 - c
	return [9]float64{
		c + k.X*k.X*oc, k.X*k.Y*oc - k.Z*s, k.X*k.Z*oc + k.Y*s,
		k.Y*k.X*oc + k.Z*s, c + k.Y*k.Y*oc, k.Y*k.Z*oc - k.X*s,
		k.Z*k.X*oc - k.Y*s, k.Z*k.Y*oc + k.X*s, c + k.Z*k.Z*oc,
	}
}

// RotationToVector converts a row-major rotation matrix into an axis-angle vector.
// The angle is atan2(|antisymmetric part|/2, (trace-1)/2), exact to rounding at 0 and pi.
func RotationToVector(r [9]float64) r3.Vector {
	anti := r3.Vector{X: r[7] - r[5], Y: r[2] - r[6], Z: r[3] - r[1]}
	theta := math.Atan2(anti.Norm()/2, (r[0]+r[4]+r[8]-1)/2)
	if theta < 1e-12 {
		return r3.Vector{}
	}
	if math.Pi-theta > 1e-6 {
		return anti.Mul(theta / anti.Norm())
	}

	// near pi the antisymmetric part vanishes; read the axis from (R + I) / 2
	xx, yy, zz := (r[0]+1)/2, (r[4]+1)/2, (r[8]+1)/2
	var axis r3.Vector
	switch {
	case xx >= yy && xx >= zz:
		x := math.Sqrt(math.Max(xx, 0))
		axis = r3.Vector{X: x, Y: (r[1] + r[3]) / (4 * x), Z: (r[2] + r[6]) / (4 * x)}
	case yy >= zz:
		y := math.Sqrt(math.Max(yy, 0))
		axis = r3.Vector{X: (r[1] + r[3]) / (4 * y), Y: y, Z: (r[5] + r[7]) / (4 * y)}
	default:
		z := math.Sqrt(math.Max(zz, 0))
		axis = r3.Vector{X: (r[2] + r[6]) / (4 * z), Y: (r[5] + r[7]) / (4 * z), Z: z}
	}
	// (R + I) / 2 fixes the axis only up to sign
	if axis.Dot(anti) < 0 {
		axis = axis.Mul(-1)
	}
	return axis.Normalize().Mul(theta)
}
