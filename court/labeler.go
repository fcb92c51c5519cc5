package court

import (
	"fmt"
	"math"
)

// LabelConfig holds the proximity threshold used to attach sidelines and the
// centerline to the serveline.
type LabelConfig struct {
	DistanceThreshold float64 `yaml:"distanceThreshold" json:"distanceThreshold"` // pixels
}

// DefaultLabelConfig returns a 20px distance threshold.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{DistanceThreshold: 20}
}

// Line roles bound by the labeler.
const (
	RoleServeline     = "serveline"
	RoleBaseline      = "baseline"
	RoleCenterline    = "centerline"
	RoleLeftSideline  = "left_sideline"
	RoleRightSideline = "right_sideline"
)

// Labels binds merged lines to their court roles.
type Labels struct {
	Serveline     LineSegment `json:"serveline"`
	Baseline      LineSegment `json:"baseline"`
	Centerline    LineSegment `json:"centerline"`
	LeftSideline  LineSegment `json:"left_sideline"`
	RightSideline LineSegment `json:"right_sideline"`

	// SingleSidelines are the vertical lines attached to the serveline endpoints.
	SingleSidelines []LineSegment `json:"single_sidelines"`
}

// ByRole returns the labeled lines keyed by role name.
func (l *Labels) ByRole() map[string]LineSegment {
	return map[string]LineSegment{
		RoleServeline:     l.Serveline,
		RoleBaseline:      l.Baseline,
		RoleCenterline:    l.Centerline,
		RoleLeftSideline:  l.LeftSideline,
		RoleRightSideline: l.RightSideline,
	}
}

// ServelineSelector picks the serveline among horizontal lines and returns its index.
type ServelineSelector interface {
	SelectServeline(horizontal []LineSegment) (int, error)
}

// ShortestHorizontal selects the shortest horizontal line. The service line spans
// only the singles width, so it is usually shorter than the baseline and net.
type ShortestHorizontal struct{}

func (ShortestHorizontal) SelectServeline(horizontal []LineSegment) (int, error) {
	if len(horizontal) == 0 {
		return 0, fmt.Errorf("no horizontal line for serveline: %w", ErrLabelingAmbiguity)
	}
	best := 0
	for i, l := range horizontal {
		if l.Length() < horizontal[best].Length() {
			best = i
		}
	}
	return best, nil
}

// LineLabeler classifies merged lines into the five roles needed for the pose.
type LineLabeler struct {
	Config   LabelConfig
	Selector ServelineSelector
}

// NewLineLabeler returns a labeler using the shortest-horizontal serveline rule.
func NewLineLabeler(cfg LabelConfig) *LineLabeler {
	return &LineLabeler{Config: cfg, Selector: ShortestHorizontal{}}
}

// Label binds every role or fails with ErrLabelingAmbiguity; it never returns a
// partial binding.
func (ll *LineLabeler) Label(lines []LineSegment) (*Labels, error) {
	var horizontal, vertical []LineSegment
	for _, l := range lines {
		if l.Orientation() == Horizontal {
			horizontal = append(horizontal, l)
		} else {
			vertical = append(vertical, l)
		}
	}

	selector := ll.Selector
	if selector == nil {
		selector = ShortestHorizontal{}
	}
	idx, err := selector.SelectServeline(horizontal)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(horizontal) {
		return nil, fmt.Errorf("serveline index %d out of %d horizontal lines: %w", idx, len(horizontal), ErrLabelingAmbiguity)
	}
	serveline := horizontal[idx]

	baseline, ok := closestBeyond(horizontal, idx, serveline.YIntercept())
	if !ok {
		return nil, fmt.Errorf("no horizontal line beyond serveline (y-intercept %.1f): %w",
			serveline.YIntercept(), ErrLabelingAmbiguity)
	}

	threshold := ll.Config.DistanceThreshold
	var sidelines []LineSegment
	for _, l := range vertical {
		if l.DistanceTo(serveline.P1()) < threshold || l.DistanceTo(serveline.P2()) < threshold {
			sidelines = append(sidelines, l)
		}
	}
	if len(sidelines) != 2 {
		return nil, fmt.Errorf("found %d single sidelines, want 2: %w", len(sidelines), ErrLabelingAmbiguity)
	}
	left, right := sidelines[0], sidelines[1]
	if left.XIntercept() > right.XIntercept() {
		left, right = right, left
	}

	mid := serveline.Midpoint()
	var centerlines []LineSegment
	for _, l := range vertical {
		if l.P1().Sub(mid).Norm() < threshold || l.P2().Sub(mid).Norm() < threshold {
			centerlines = append(centerlines, l)
		}
	}
	if len(centerlines) != 1 {
		return nil, fmt.Errorf("found %d centerline candidates, want 1: %w", len(centerlines), ErrLabelingAmbiguity)
	}

	return &Labels{
		Serveline:       serveline,
		Baseline:        baseline,
		Centerline:      centerlines[0],
		LeftSideline:    left,
		RightSideline:   right,
		SingleSidelines: sidelines,
	}, nil
}

// closestBeyond returns the line with the smallest y-intercept strictly greater
// than y, skipping index skip.
func closestBeyond(lines []LineSegment, skip int, y float64) (LineSegment, bool) {
	best := -1
	bestY := math.Inf(1)
	for i, l := range lines {
		if i == skip {
			continue
		}
		if yi := l.YIntercept(); yi > y && yi < bestY {
			best, bestY = i, yi
		}
	}
	if best < 0 {
		return LineSegment{}, false
	}
	return lines[best], true
}
