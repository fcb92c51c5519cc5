package court

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugRenderer_RenderSVG(t *testing.T) {
	det, d := detectScene(t)
	r := NewDebugRenderer(det.Court)

	var buf bytes.Buffer
	require.NoError(t, r.RenderSVG(&buf, d))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "</svg>")
	assert.Greater(t, strings.Count(out, "<path"), 20)
}

func TestDebugRenderer_RenderPNG(t *testing.T) {
	det, d := detectScene(t)
	r := NewDebugRenderer(det.Court)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPNG(&buf, d))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())

	// the background is dark; keypoint E is drawn white
	e := d.Correspondences[4].Image
	cr, cg, cb, _ := img.At(int(e.X), int(e.Y)).RGBA()
	assert.Greater(t, cr+cg+cb, uint32(3*0x8000), "keypoint E should be bright")
	br, bg, bb, _ := img.At(2, 700).RGBA()
	assert.Less(t, br+bg+bb, uint32(3*0x4000), "background should be dark")
}

func TestDebugRenderer_SizeFallback(t *testing.T) {
	tol := DefaultTolerance()
	d := NewDetection(0, 0, []LineSegment{NewLineSegment(0, 0, 40, 30, tol)})
	w, h := NewDebugRenderer(nil).size(d)
	assert.Equal(t, 40.0, w)
	assert.Equal(t, 30.0, h)
}

func TestDebugObserver(t *testing.T) {
	cam := broadcastCamera()
	dir := filepath.Join(t.TempDir(), "debug")
	det := newTestDetector(t)

	var errs []error
	det.Observe(DebugObserver(dir, "north", NewDebugRenderer(det.Court), func(err error) {
		errs = append(errs, err)
	}))
	_, err := det.Detect(cam.width, cam.height, courtScene(t, cam))
	require.NoError(t, err)
	assert.Empty(t, errs)

	for _, name := range []string{"north-1-cluster.svg", "north-2-label.svg", "north-3-correspondences.svg", "north-4-pose.svg"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Contains(t, string(data), "<svg", name)
	}
}

func TestDebugObserver_WriteError(t *testing.T) {
	// a regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var got error
	obs := DebugObserver(blocker, "cam", NewDebugRenderer(nil), func(err error) { got = err })
	obs("cluster", NewDetection(10, 10, nil))
	assert.Error(t, got)
	assert.False(t, errors.Is(got, ErrDegenerateGeometry))
}
