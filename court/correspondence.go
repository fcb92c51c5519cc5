package court

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Correspondence pairs an image point with the court keypoint it depicts.
type Correspondence struct {
	Label string    `json:"label"`
	Image r2.Point  `json:"image"`
	World r3.Vector `json:"world"`
}

// BuildCorrespondences intersects the labeled lines in keypoint order A..E and
// pairs each image point with the matching court keypoint.
func BuildCorrespondences(labels *Labels, c *Court, tol Tolerance) ([]Correspondence, error) {
	if labels == nil || c == nil {
		return nil, fmt.Errorf("labels and court are required: %w", ErrInsufficientData)
	}
	pairs := [5][2]LineSegment{
		{labels.Serveline, labels.LeftSideline},
		{labels.Serveline, labels.RightSideline},
		{labels.Baseline, labels.LeftSideline},
		{labels.Baseline, labels.RightSideline},
		{labels.Serveline, labels.Centerline},
	}
	world := c.Keypoints()

	out := make([]Correspondence, 0, len(pairs))
	for i, pair := range pairs {
		p, err := pair[0].IntersectWith(pair[1], tol)
		if err != nil {
			return nil, fmt.Errorf("keypoint %s: %w", KeypointNames[i], err)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			continue
		}
		out = append(out, Correspondence{Label: KeypointNames[i], Image: p, World: world[i]})
	}
	if len(out) < len(pairs) {
		return nil, fmt.Errorf("assembled %d of %d correspondences: %w", len(out), len(pairs), ErrInsufficientData)
	}
	return out, nil
}

// SplitCorrespondences returns the world and image points as parallel slices.
func SplitCorrespondences(cs []Correspondence) ([]r3.Vector, []r2.Point) {
	world := make([]r3.Vector, len(cs))
	image := make([]r2.Point, len(cs))
	for i, c := range cs {
		world[i] = c.World
		image[i] = c.Image
	}
	return world, image
}
