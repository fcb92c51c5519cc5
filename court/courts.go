package court

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
)

// CourtDefinition holds the variable dimensions of a court, in meters.
type CourtDefinition struct {
	Length          float64 `yaml:"length" json:"length"`
	Width           float64 `yaml:"width" json:"width"`
	ServelineWidth  float64 `yaml:"servelineWidth" json:"servelineWidth"`
	ServelineOffset float64 `yaml:"servelineOffset" json:"servelineOffset"` // from the net
	LineWidth       float64 `yaml:"lineWidth" json:"lineWidth"`
}

// CourtITF is the ITF tennis court.
const CourtITF = "ITF"

// DefaultCourtTable returns the built-in court definitions.
func DefaultCourtTable() map[string]CourtDefinition {
	return map[string]CourtDefinition{
		//          length  width  serveline width  serveline offset  line width
		CourtITF: {23.77, 10.97, 8.23, 6.40, 0.05},
	}
}

// Validate rejects definitions whose keypoints would be degenerate.
func (d CourtDefinition) Validate() error {
	if d.Length <= 0 || d.Width <= 0 {
		return fmt.Errorf("court length and width must be positive")
	}
	if d.ServelineWidth <= 0 || d.ServelineWidth > d.Width {
		return fmt.Errorf("serveline width must be in (0, width]")
	}
	if d.ServelineOffset <= 0 || d.ServelineOffset >= d.Length/2 {
		return fmt.Errorf("serveline offset must be in (0, length/2)")
	}
	return nil
}

// Court computes world-space keypoints and reference lines for one court type.
// World coordinates are meters on the z=0 plane: origin at the left end of the
// near baseline, x along the baseline, y towards the net.
//
//	|   |         |         |   |
//	+---+---------+---------+---+    <- net
//	|   |         |         |   |
//	|   A---------E---------B   |    <- service line
//	|   |                   |   |
//	|   |                   |   |
//	o---C-------------------D---+    <- baseline
type Court struct {
	Type       string
	Definition CourtDefinition
}

// NewCourt looks a court type up in table.
func NewCourt(courtType string, table map[string]CourtDefinition) (*Court, error) {
	def, ok := table[courtType]
	if !ok {
		known := make([]string, 0, len(table))
		for k := range table {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown court type %q (known: %v)", courtType, known)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("court %s: %w", courtType, err)
	}
	return &Court{Type: courtType, Definition: def}, nil
}

// Keypoint names in correspondence order.
var KeypointNames = [5]string{"A", "B", "C", "D", "E"}

// Keypoints returns A, B, C, D, E: serveline ends, their feet on the baseline,
// and the serveline midpoint.
func (c *Court) Keypoints() [5]r3.Vector {
	serve := c.Serveline()
	a, b := serve[0], serve[1]
	return [5]r3.Vector{
		{X: a.X, Y: a.Y},
		{X: b.X, Y: b.Y},
		{X: a.X, Y: 0},
		{X: b.X, Y: 0},
		{X: (a.X + b.X) / 2, Y: a.Y},
	}
}

func (c *Court) servelineY() float64 {
	return c.Definition.Length/2 - c.Definition.ServelineOffset
}

func (c *Court) Baseline() [2]r3.Vector {
	return [2]r3.Vector{{}, {X: c.Definition.Width}}
}

func (c *Court) Serveline() [2]r3.Vector {
	w, sw, y := c.Definition.Width, c.Definition.ServelineWidth, c.servelineY()
	return [2]r3.Vector{{X: (w - sw) / 2, Y: y}, {X: (w + sw) / 2, Y: y}}
}

func (c *Court) Centerline() [2]r3.Vector {
	x := c.Definition.Width / 2
	half := c.Definition.Length / 2
	return [2]r3.Vector{{X: x, Y: half - c.Definition.ServelineOffset}, {X: x, Y: half + c.Definition.ServelineOffset}}
}

func (c *Court) Netline() [2]r3.Vector {
	y := c.Definition.Length / 2
	return [2]r3.Vector{{Y: y}, {X: c.Definition.Width, Y: y}}
}

func (c *Court) LeftSideline() [2]r3.Vector {
	return [2]r3.Vector{{}, {Y: c.Definition.Length}}
}

func (c *Court) RightSideline() [2]r3.Vector {
	w := c.Definition.Width
	return [2]r3.Vector{{X: w}, {X: w, Y: c.Definition.Length}}
}

func (c *Court) LeftSingleSideline() [2]r3.Vector {
	x := (c.Definition.Width - c.Definition.ServelineWidth) / 2
	return [2]r3.Vector{{X: x}, {X: x, Y: c.Definition.Length}}
}

func (c *Court) RightSingleSideline() [2]r3.Vector {
	x := (c.Definition.Width + c.Definition.ServelineWidth) / 2
	return [2]r3.Vector{{X: x}, {X: x, Y: c.Definition.Length}}
}

// Lines returns every reference line keyed by name.
func (c *Court) Lines() map[string][2]r3.Vector {
	return map[string][2]r3.Vector{
		"baseline":              c.Baseline(),
		"serveline":             c.Serveline(),
		"centerline":            c.Centerline(),
		"netline":               c.Netline(),
		"left_sideline":         c.LeftSideline(),
		"right_sideline":        c.RightSideline(),
		"left_single_sideline":  c.LeftSingleSideline(),
		"right_single_sideline": c.RightSingleSideline(),
	}
}
