package court

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/golang/geo/r2"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// roleColors is the palette for labeled lines
var roleColors = map[string]color.RGBA{
	RoleServeline:     {230, 57, 70, 255},
	RoleBaseline:      {69, 123, 157, 255},
	RoleCenterline:    {244, 162, 97, 255},
	RoleLeftSideline:  {42, 157, 143, 255},
	RoleRightSideline: {131, 56, 236, 255},
}

var clusterColors = []color.RGBA{
	{255, 190, 11, 255},
	{251, 86, 7, 255},
	{255, 0, 110, 255},
	{58, 134, 255, 255},
	{6, 214, 160, 255},
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// DebugRenderer draws a Detection in image coordinates: raw segments, merged
// lines, labeled roles, correspondences and, once calibrated, the reprojected
// court.
type DebugRenderer struct {
	Court      *Court
	Resolution canvas.Resolution // PNG pixels per image pixel
	LineWidth  float64
}

// NewDebugRenderer renders one canvas unit per image pixel
func NewDebugRenderer(c *Court) *DebugRenderer {
	return &DebugRenderer{Court: c, Resolution: canvas.DPMM(1), LineWidth: 2}
}

// RenderSVG writes the detection as an SVG
func (r *DebugRenderer) RenderSVG(w io.Writer, d *Detection) error {
	width, height := r.size(d)
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, d, height)
	return svgRenderer.Close()
}

// RenderPNG writes the detection as a PNG with keypoint labels
func (r *DebugRenderer) RenderPNG(w io.Writer, d *Detection) error {
	width, height := r.size(d)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, d, height)

	// rasterizer pixels are y-down like the source image
	scale := r.Resolution.DPMM()
	for _, c := range d.Correspondences {
		x := int(c.Image.X*scale) + 6
		y := int(c.Image.Y*scale) - 6
		drawText(rast, x, y, c.Label, color.RGBA{255, 255, 255, 255})
	}
	if d.Calibration != nil {
		drawText(rast, 8, 16, fmt.Sprintf("f=%.0fpx rms=%.2fpx", d.Calibration.Intrinsics.Focal, d.Calibration.RMSError),
			color.RGBA{255, 255, 255, 255})
	}
	return png.Encode(w, rast)
}

func (r *DebugRenderer) size(d *Detection) (float64, float64) {
	width, height := float64(d.Width), float64(d.Height)
	if width <= 0 || height <= 0 {
		// fall back to the extent of the segments
		for _, s := range d.Segments {
			for _, p := range s.Endpoints() {
				width = max(width, p.X)
				height = max(height, p.Y)
			}
		}
	}
	return max(width, 1), max(height, 1)
}

func (r *DebugRenderer) renderToCanvas(renderer canvasRenderer, d *Detection, height float64) {
	// canvas is y-up; image coordinates are y-down
	toCanvas := func(p r2.Point) (float64, float64) { return p.X, height - p.Y }
	stroke := func(c color.RGBA, w float64) canvas.Style {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = w
		return style
	}
	segment := func(a, b r2.Point, style canvas.Style) {
		p := &canvas.Path{}
		p.MoveTo(toCanvas(a))
		p.LineTo(toCanvas(b))
		renderer.RenderPath(p, style, canvas.Identity)
	}

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: color.RGBA{30, 30, 30, 255}}
	width, _ := r.size(d)
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// cluster membership colors raw segments once clustering ran
	segColor := make([]color.RGBA, len(d.Segments))
	for i := range segColor {
		segColor[i] = color.RGBA{150, 150, 150, 255}
	}
	for i, cl := range d.Clusters {
		for _, m := range cl.Members {
			if m < len(segColor) {
				segColor[m] = clusterColors[i%len(clusterColors)]
			}
		}
	}
	for i, s := range d.Segments {
		segment(s.P1(), s.P2(), stroke(segColor[i], r.LineWidth/2))
	}
	for _, l := range d.Lines {
		segment(l.P1(), l.P2(), stroke(color.RGBA{255, 255, 255, 160}, r.LineWidth))
	}

	if d.Labels != nil {
		roles := d.Labels.ByRole()
		for _, name := range slices.Sorted(maps.Keys(roles)) {
			l := roles[name]
			segment(l.P1(), l.P2(), stroke(roleColors[name], 2*r.LineWidth))
		}
	}

	if d.Calibration != nil && r.Court != nil {
		lines := r.Court.Lines()
		for _, name := range slices.Sorted(maps.Keys(lines)) {
			l := lines[name]
			segment(d.Calibration.Project(l[0]), d.Calibration.Project(l[1]), stroke(color.RGBA{255, 255, 0, 255}, r.LineWidth/2))
		}
	}

	dotStyle := canvas.DefaultStyle
	dotStyle.Fill = canvas.Paint{Color: color.RGBA{255, 255, 255, 255}}
	dotStyle.Stroke = canvas.Paint{Color: canvas.Black}
	for _, c := range d.Correspondences {
		x, y := toCanvas(c.Image)
		renderer.RenderPath(canvas.Circle(3*r.LineWidth), dotStyle, canvas.Identity.Translate(x, y))
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *rasterizer.Rasterizer, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// DebugObserver returns an Observer writing one SVG per stage into dir, named
// {prefix}-{n}-{stage}.svg. Write errors are reported to onError when set.
func DebugObserver(dir, prefix string, r *DebugRenderer, onError func(error)) Observer {
	n := 0
	return func(stage string, d *Detection) {
		n++
		path := filepath.Join(dir, fmt.Sprintf("%s-%d-%s.svg", prefix, n, stage))
		if err := writeDebugSVG(path, r, d); err != nil && onError != nil {
			onError(err)
		}
	}
}

func writeDebugSVG(path string, r *DebugRenderer, d *Detection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating debug directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := r.RenderSVG(f, d); err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return nil
}
