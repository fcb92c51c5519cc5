package court

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCalibrationCachePath is the default path for the per-camera calibration cache
const DefaultCalibrationCachePath = ".calibration-cache.json"

// CameraResult is the outcome of the latest detection for one camera. On failure
// only Error is set; there is no partial result.
type CameraResult struct {
	CameraID        string           `json:"cameraId"`
	Calibration     *Calibration     `json:"calibration,omitempty"`
	Labels          *Labels          `json:"labels,omitempty"`
	Lines           []LineSegment    `json:"lines,omitempty"`
	Correspondences []Correspondence `json:"correspondences,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	Error           string           `json:"error,omitempty"`

	detection *Detection
}

// NewCameraResult summarizes a detection or its error.
func NewCameraResult(cameraID string, d *Detection, err error) *CameraResult {
	r := &CameraResult{CameraID: cameraID, Timestamp: time.Now()}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if d != nil {
		r.detection = d
		r.Calibration = d.Calibration
		r.Labels = d.Labels
		r.Lines = d.Lines
		r.Correspondences = d.Correspondences
	}
	return r
}

// Detection returns the full record behind a successful result, if kept.
func (r *CameraResult) Detection() *Detection { return r.detection }

// OK reports whether the detection succeeded.
func (r *CameraResult) OK() bool { return r.Error == "" && r.Calibration != nil }

// CalibrationCache stores the last good calibration per camera
type CalibrationCache struct {
	Cameras     map[string]*Calibration `json:"cameras"`
	LastUpdated int64                   `json:"lastUpdated"`
}

// LoadCalibrationCache loads the calibration cache; a missing file is not an error
func LoadCalibrationCache(path string) (*CalibrationCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No calibration file yet
		}
		return nil, fmt.Errorf("reading calibration file: %w", err)
	}

	var cache CalibrationCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing calibration file: %w", err)
	}
	if cache.Cameras == nil {
		cache.Cameras = make(map[string]*Calibration)
	}
	return &cache, nil
}

// SaveCalibrationCache writes the cache as indented JSON
func SaveCalibrationCache(path string, cache *CalibrationCache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating calibration directory: %w", err)
	}

	cache.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling calibration data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing calibration file: %w", err)
	}

	return nil
}
