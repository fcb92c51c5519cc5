package court

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

// testCamera is a pinhole camera used to render synthetic court scenes.
type testCamera struct {
	focal         float64
	width, height int
	rot           [9]float64
	t             r3.Vector
}

// lookAt places a camera at eye looking at target with world +Z up.
func lookAt(eye, target r3.Vector, focal float64, width, height int) testCamera {
	forward := target.Sub(eye).Normalize()
	right := forward.Cross(r3.Vector{Z: 1}).Normalize()
	down := forward.Cross(right)
	rot := [9]float64{
		right.X, right.Y, right.Z,
		down.X, down.Y, down.Z,
		forward.X, forward.Y, forward.Z,
	}
	t := r3.Vector{
		X: -(rot[0]*eye.X + rot[1]*eye.Y + rot[2]*eye.Z),
		Y: -(rot[3]*eye.X + rot[4]*eye.Y + rot[5]*eye.Z),
		Z: -(rot[6]*eye.X + rot[7]*eye.Y + rot[8]*eye.Z),
	}
	return testCamera{focal: focal, width: width, height: height, rot: rot, t: t}
}

func (c testCamera) project(w r3.Vector) r2.Point {
	k := Intrinsics{Focal: c.focal, Cx: float64(c.width) / 2, Cy: float64(c.height) / 2}
	return projectPoint(k, c.rot, c.t, w)
}

func (c testCamera) segment(a, b r3.Vector) RawSegment {
	pa, pb := c.project(a), c.project(b)
	return RawSegment{pa.X, pa.Y, pb.X, pb.Y}
}

// broadcastCamera sits behind the near baseline, above the court center line.
func broadcastCamera() testCamera {
	return lookAt(r3.Vector{X: 5.485, Y: -8, Z: 10}, r3.Vector{X: 5.485, Y: 6}, 1000, 1280, 720)
}

func itfCourt(t *testing.T) *Court {
	t.Helper()
	c, err := NewCourt(CourtITF, DefaultCourtTable())
	require.NoError(t, err)
	return c
}

// courtScene renders the five lines used for labeling: serveline, baseline,
// centerline and both single sidelines.
func courtScene(t *testing.T, cam testCamera) []RawSegment {
	t.Helper()
	c := itfCourt(t)
	kp := c.Keypoints()
	center := c.Centerline()
	left, right := c.LeftSingleSideline(), c.RightSingleSideline()
	return []RawSegment{
		cam.segment(kp[0], kp[1]),         // serveline A-B
		cam.segment(kp[2], kp[3]),         // baseline C-D
		cam.segment(left[0], left[1]),     // left single sideline
		cam.segment(right[0], right[1]),   // right single sideline
		cam.segment(center[0], center[1]), // centerline from E
	}
}

// splitSegment cuts a raw segment into n collinear pieces with small gaps.
func splitSegment(s RawSegment, n int) []RawSegment {
	out := make([]RawSegment, 0, n)
	dx, dy := s[2]-s[0], s[3]-s[1]
	for i := 0; i < n; i++ {
		t0 := float64(i) / float64(n)
		t1 := (float64(i) + 0.9) / float64(n)
		out = append(out, RawSegment{s[0] + t0*dx, s[1] + t0*dy, s[0] + t1*dx, s[1] + t1*dy})
	}
	return out
}
