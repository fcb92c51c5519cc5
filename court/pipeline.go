package court

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Field marks which parts of a Detection are populated.
type Field uint

const (
	FieldSegments Field = 1 << iota
	FieldClusters
	FieldLines
	FieldLabels
	FieldCorrespondences
	FieldCalibration
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldSegments, "segments"},
	{FieldClusters, "clusters"},
	{FieldLines, "lines"},
	{FieldLabels, "labels"},
	{FieldCorrespondences, "correspondences"},
	{FieldCalibration, "calibration"},
}

// Has reports whether every field in want is set.
func (f Field) Has(want Field) bool { return f&want == want }

func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Detection is the record threaded through the stages of one invocation.
// Fields only accumulate.
type Detection struct {
	Width, Height int

	Segments        []LineSegment
	Clusters        []Cluster
	Lines           []LineSegment
	Labels          *Labels
	Correspondences []Correspondence
	Calibration     *Calibration

	populated Field
}

// NewDetection seeds a record with the image size and raw segments.
func NewDetection(width, height int, segments []LineSegment) *Detection {
	return &Detection{Width: width, Height: height, Segments: segments, populated: FieldSegments}
}

// Populated returns the set fields.
func (d *Detection) Populated() Field { return d.populated }

func (d *Detection) mark(f Field) { d.populated |= f }

// Stage is one step of the pipeline. Requires and Produces are checked when the
// pipeline is built.
type Stage interface {
	Name() string
	Requires() Field
	Produces() Field
	Run(d *Detection) error
}

// Observer is invoked after each successful stage, for example to render debug output.
type Observer func(stage string, d *Detection)

// Pipeline runs its stages in order on a fresh Detection.
type Pipeline struct {
	stages    []Stage
	observers []Observer
}

// NewPipeline fails when a stage requires a field no earlier stage produces.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}
	have := FieldSegments
	for _, s := range stages {
		if missing := s.Requires() &^ have; missing != 0 {
			return nil, fmt.Errorf("stage %s requires %s, which no earlier stage produces", s.Name(), missing)
		}
		have |= s.Produces()
	}
	return &Pipeline{stages: stages}, nil
}

// Observe registers an observer.
func (p *Pipeline) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage. The first failure aborts the run and is returned as a
// *StageError; no partial Detection is returned.
func (p *Pipeline) Run(d *Detection) (*Detection, error) {
	for _, s := range p.stages {
		if err := s.Run(d); err != nil {
			return nil, &StageError{Stage: s.Name(), Err: err}
		}
		d.mark(s.Produces())
		for _, o := range p.observers {
			o(s.Name(), d)
		}
	}
	return d, nil
}

// ClusterStage groups segments and merges each group into one line.
type ClusterStage struct{ Clusterer *SegmentClusterer }

func (ClusterStage) Name() string    { return "cluster" }
func (ClusterStage) Requires() Field { return FieldSegments }
func (ClusterStage) Produces() Field { return FieldClusters | FieldLines }
func (s ClusterStage) Run(d *Detection) error {
	clusters, lines, err := s.Clusterer.Cluster(d.Segments)
	if err != nil {
		return err
	}
	d.Clusters, d.Lines = clusters, lines
	return nil
}

// LabelStage binds merged lines to court roles.
type LabelStage struct{ Labeler *LineLabeler }

func (LabelStage) Name() string    { return "label" }
func (LabelStage) Requires() Field { return FieldLines }
func (LabelStage) Produces() Field { return FieldLabels }
func (s LabelStage) Run(d *Detection) error {
	labels, err := s.Labeler.Label(d.Lines)
	if err != nil {
		return err
	}
	d.Labels = labels
	return nil
}

// CorrespondenceStage intersects labeled lines into keypoints.
type CorrespondenceStage struct {
	Court     *Court
	Tolerance Tolerance
}

func (CorrespondenceStage) Name() string    { return "correspondences" }
func (CorrespondenceStage) Requires() Field { return FieldLabels }
func (CorrespondenceStage) Produces() Field { return FieldCorrespondences }
func (s CorrespondenceStage) Run(d *Detection) error {
	cs, err := BuildCorrespondences(d.Labels, s.Court, s.Tolerance)
	if err != nil {
		return err
	}
	d.Correspondences = cs
	return nil
}

// PoseStage solves the camera from the correspondences.
type PoseStage struct{ Estimator PoseEstimator }

func (PoseStage) Name() string    { return "pose" }
func (PoseStage) Requires() Field { return FieldCorrespondences }
func (PoseStage) Produces() Field { return FieldCalibration }
func (s PoseStage) Run(d *Detection) error {
	world, img := SplitCorrespondences(d.Correspondences)
	calib, err := s.Estimator.Estimate(world, img, d.Width, d.Height)
	if err != nil {
		return err
	}
	d.Calibration = calib
	return nil
}

// SegmentDetector extracts raw line segments from an image.
type SegmentDetector interface {
	DetectSegments(img image.Image) ([]RawSegment, error)
}

// Detector runs the full pipeline for one court type. It holds no per-call state,
// so one Detector may serve concurrent calls.
type Detector struct {
	Court     *Court
	Tolerance Tolerance
	Segments  SegmentDetector

	pipeline *Pipeline
}

// NewDetector builds the default cluster, label, correspondence and pose stages
// from cfg.
func NewDetector(cfg *Config) (*Detector, error) {
	tol := cfg.Court.Tolerance
	table := DefaultCourtTable()
	for name, def := range cfg.Courts {
		table[name] = def
	}
	c, err := NewCourt(cfg.Court.Type, table)
	if err != nil {
		return nil, err
	}
	clusterer, err := NewSegmentClusterer(cfg.Clustering, tol)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(
		ClusterStage{Clusterer: clusterer},
		LabelStage{Labeler: NewLineLabeler(cfg.Labeling)},
		CorrespondenceStage{Court: c, Tolerance: tol},
		PoseStage{Estimator: NewPlanarPoseEstimator(cfg.Pose, tol)},
	)
	if err != nil {
		return nil, err
	}
	return &Detector{Court: c, Tolerance: tol, pipeline: p}, nil
}

// Observe registers a per-stage observer.
func (d *Detector) Observe(o Observer) { d.pipeline.Observe(o) }

// Detect runs the pipeline on raw segments from a width x height image.
func (d *Detector) Detect(width, height int, raw []RawSegment) (*Detection, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no segments: %w", ErrInsufficientData)
	}
	return d.pipeline.Run(NewDetection(width, height, SegmentsFromRaw(raw, d.Tolerance)))
}

// DetectImage extracts segments with the configured SegmentDetector first.
func (d *Detector) DetectImage(img image.Image) (*Detection, error) {
	if d.Segments == nil {
		return nil, fmt.Errorf("no segment detector configured: %w", ErrInsufficientData)
	}
	raw, err := d.Segments.DetectSegments(img)
	if err != nil {
		return nil, fmt.Errorf("detecting segments: %w", err)
	}
	b := img.Bounds()
	return d.Detect(b.Dx(), b.Dy(), raw)
}
