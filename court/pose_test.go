package court

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func keypointCorrespondences(t *testing.T, cam testCamera) ([]r3.Vector, []r2.Point) {
	t.Helper()
	kp := itfCourt(t).Keypoints()
	world := kp[:]
	image := make([]r2.Point, len(world))
	for i, w := range world {
		image[i] = cam.project(w)
	}
	return world, image
}

func assertRotationNear(t *testing.T, want, got [9]float64, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "rotation[%d]", i)
	}
}

func TestPlanarPoseEstimator_Estimate(t *testing.T) {
	tests := []struct {
		name string
		eye  r3.Vector
		at   r3.Vector
	}{
		{"broadcast", r3.Vector{X: 5.485, Y: -8, Z: 10}, r3.Vector{X: 5.485, Y: 6}},
		{"corner", r3.Vector{X: -3, Y: -6, Z: 8}, r3.Vector{X: 6, Y: 10}},
		{"side", r3.Vector{X: 18, Y: 3, Z: 6}, r3.Vector{X: 4, Y: 4}},
	}

	for _, tt := range tests {
		for _, refine := range []bool{false, true} {
			name := tt.name
			if refine {
				name += "_refined"
			}
			t.Run(name, func(t *testing.T) {
				cam := lookAt(tt.eye, tt.at, 1000, 1280, 720)
				world, image := keypointCorrespondences(t, cam)

				est := NewPlanarPoseEstimator(PoseConfig{Refine: refine}, DefaultTolerance())
				calib, err := est.Estimate(world, image, 1280, 720)
				require.NoError(t, err)

				assert.InDelta(t, 1000, calib.Intrinsics.Focal, 1e-3)
				assert.Equal(t, 640.0, calib.Intrinsics.Cx)
				assert.Equal(t, 360.0, calib.Intrinsics.Cy)
				assertRotationNear(t, cam.rot, calib.Rotation, 1e-6)
				assert.InDelta(t, cam.t.X, calib.Translation.X, 1e-5)
				assert.InDelta(t, cam.t.Y, calib.Translation.Y, 1e-5)
				assert.InDelta(t, cam.t.Z, calib.Translation.Z, 1e-5)
				assert.Less(t, calib.RMSError, 1e-4)

				pos := calib.Position()
				assert.InDelta(t, tt.eye.X, pos.X, 1e-4)
				assert.InDelta(t, tt.eye.Y, pos.Y, 1e-4)
				assert.InDelta(t, tt.eye.Z, pos.Z, 1e-4)

				for i, w := range world {
					p := calib.Project(w)
					assert.InDelta(t, image[i].X, p.X, 1e-4)
					assert.InDelta(t, image[i].Y, p.Y, 1e-4)
				}
			})
		}
	}
}

func TestPlanarPoseEstimator_FourPoints(t *testing.T) {
	cam := broadcastCamera()
	world, image := keypointCorrespondences(t, cam)

	calib, err := NewPlanarPoseEstimator(PoseConfig{}, DefaultTolerance()).Estimate(world[:4], image[:4], 1280, 720)
	require.NoError(t, err)
	assert.InDelta(t, 1000, calib.Intrinsics.Focal, 1e-3)

	// E was not used but must still reproject
	p := calib.Project(world[4])
	assert.InDelta(t, image[4].X, p.X, 1e-3)
	assert.InDelta(t, image[4].Y, p.Y, 1e-3)
}

func TestPlanarPoseEstimator_RefineWithNoise(t *testing.T) {
	cam := lookAt(r3.Vector{X: -3, Y: -6, Z: 8}, r3.Vector{X: 6, Y: 10}, 1000, 1280, 720)
	world, image := keypointCorrespondences(t, cam)
	noise := []r2.Point{{X: 0.25, Y: -0.2}, {X: -0.15, Y: 0.25}, {X: 0.2, Y: 0.1}, {X: -0.25, Y: -0.1}, {X: 0.1, Y: 0.2}}
	for i := range image {
		image[i] = image[i].Add(noise[i])
	}

	plain, err := NewPlanarPoseEstimator(PoseConfig{Refine: false}, DefaultTolerance()).Estimate(world, image, 1280, 720)
	require.NoError(t, err)
	refined, err := NewPlanarPoseEstimator(PoseConfig{Refine: true}, DefaultTolerance()).Estimate(world, image, 1280, 720)
	require.NoError(t, err)

	assert.LessOrEqual(t, refined.RMSError, plain.RMSError)
	assert.Less(t, refined.RMSError, 1.0)
	assert.InDelta(t, 1000, refined.Intrinsics.Focal, 200)
	assert.Equal(t, RotationToVector(refined.Rotation), refined.RotationVector)
}

func TestPlanarPoseEstimator_Errors(t *testing.T) {
	est := NewPlanarPoseEstimator(PoseConfig{}, DefaultTolerance())
	world, image := keypointCorrespondences(t, broadcastCamera())

	_, err := est.Estimate(world[:3], image[:3], 1280, 720)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = est.Estimate(world, image[:4], 1280, 720)
	assert.ErrorIs(t, err, ErrInsufficientData)

	lifted := append([]r3.Vector(nil), world...)
	lifted[2].Z = 1
	_, err = est.Estimate(lifted, image, 1280, 720)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	line := []r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}}
	_, err = est.Estimate(line, image[:4], 1280, 720)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	flat := []r2.Point{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}, {X: 40, Y: 40}, {X: 50, Y: 50}}
	_, err = est.Estimate(world, flat, 1280, 720)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	_, err = est.Estimate(world, image, 0, 720)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPlanarPoseEstimator_FrontoParallel(t *testing.T) {
	eye := r3.Vector{X: 5, Y: 5, Z: 10}
	cam := testCamera{
		focal:  1000,
		width:  1280,
		height: 720,
		rot:    [9]float64{1, 0, 0, 0, -1, 0, 0, 0, -1},
		t:      r3.Vector{X: -eye.X, Y: eye.Y, Z: eye.Z},
	}
	world, image := keypointCorrespondences(t, cam)

	_, err := NewPlanarPoseEstimator(PoseConfig{}, DefaultTolerance()).Estimate(world, image, 1280, 720)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestEstimateHomography(t *testing.T) {
	want := mat.NewDense(3, 3, []float64{
		2, 0.1, 100,
		0.05, 1.5, 50,
		0.001, 0.002, 1,
	})
	src := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}, {X: 0, Y: 5}, {X: 4, Y: 2}}
	dst := make([]r2.Point, len(src))
	for i, p := range src {
		w := want.At(2, 0)*p.X + want.At(2, 1)*p.Y + want.At(2, 2)
		dst[i] = r2.Point{
			X: (want.At(0, 0)*p.X + want.At(0, 1)*p.Y + want.At(0, 2)) / w,
			Y: (want.At(1, 0)*p.X + want.At(1, 1)*p.Y + want.At(1, 2)) / w,
		}
	}

	h, err := EstimateHomography(src, dst)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, h, 1e-6), "got %v", mat.Formatted(h))

	_, err = EstimateHomography(src[:3], dst[:3])
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRotationVector_RoundTrip(t *testing.T) {
	vectors := []r3.Vector{
		{},
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: -1.2, Y: 0.4, Z: 2.1},
		{Z: math.Pi},
		r3.Vector{X: 1, Y: 1}.Normalize().Mul(math.Pi),
		r3.Vector{X: 1, Y: 2, Z: 3}.Normalize().Mul(math.Pi - 1e-5),
		r3.Vector{X: -3, Y: 1, Z: 2}.Normalize().Mul(math.Pi - 1e-7),
		r3.Vector{X: 0.5, Y: -0.5, Z: 0.1}.Normalize().Mul(1e-6),
	}
	for _, v := range vectors {
		r := VectorToRotation(v)

		rm := mat.NewDense(3, 3, append([]float64(nil), r[:]...))
		var rrt mat.Dense
		rrt.Mul(rm, rm.T())
		assert.True(t, mat.EqualApprox(&rrt, eye3(), 1e-12), "%v is not orthonormal", v)
		assert.InDelta(t, 1, mat.Det(rm), 1e-12)

		back := RotationToVector(r)
		assertRotationNear(t, r, VectorToRotation(back), 1e-9)
		// at exactly pi the axis sign is arbitrary
		if math.Pi-v.Norm() > 1e-12 {
			assert.InDelta(t, v.X, back.X, 1e-9)
			assert.InDelta(t, v.Y, back.Y, 1e-9)
			assert.InDelta(t, v.Z, back.Z, 1e-9)
		}
	}
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
