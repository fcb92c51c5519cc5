package court

import (
	"sort"
	"sync"
)

// StateTracker keeps the latest result and last good calibration per camera for
// the HTTP endpoints.
type StateTracker struct {
	mu           sync.RWMutex
	results      map[string]*CameraResult
	calibrations map[string]*Calibration
	last         map[string]*Detection
	detections   map[string]int
	failures     map[string]int
}

// NewStateTracker creates a tracker, seeded from a calibration cache when one is given
func NewStateTracker(cache *CalibrationCache) *StateTracker {
	st := &StateTracker{
		results:      make(map[string]*CameraResult),
		calibrations: make(map[string]*Calibration),
		last:         make(map[string]*Detection),
		detections:   make(map[string]int),
		failures:     make(map[string]int),
	}
	if cache != nil {
		for id, c := range cache.Cameras {
			st.calibrations[id] = c
		}
	}
	return st
}

// Update records a result. A failed result keeps the previous calibration.
func (st *StateTracker) Update(result *CameraResult) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.results[result.CameraID] = result
	if result.OK() {
		st.calibrations[result.CameraID] = result.Calibration
		if d := result.Detection(); d != nil {
			st.last[result.CameraID] = d
		}
		st.detections[result.CameraID]++
	} else {
		st.failures[result.CameraID]++
	}
}

// Result returns the latest result for a camera
func (st *StateTracker) Result(cameraID string) (*CameraResult, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.results[cameraID]
	return r, ok
}

// Calibration returns the last good calibration for a camera
func (st *StateTracker) Calibration(cameraID string) (*Calibration, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.calibrations[cameraID]
	return c, ok
}

// Calibrations returns a copy of all known calibrations
func (st *StateTracker) Calibrations() map[string]*Calibration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]*Calibration, len(st.calibrations))
	for id, c := range st.calibrations {
		out[id] = c
	}
	return out
}

// LastDetection returns the latest successful detection for a camera
func (st *StateTracker) LastDetection(cameraID string) (*Detection, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	d, ok := st.last[cameraID]
	return d, ok
}

// CameraStatus summarizes one camera for listings
type CameraStatus struct {
	CameraID      string `json:"cameraId"`
	Calibrated    bool   `json:"calibrated"`
	Detections    int    `json:"detections"`
	Failures      int    `json:"failures"`
	LastError     string `json:"lastError,omitempty"`
	LastTimestamp int64  `json:"lastTimestamp,omitempty"`
}

// Cameras lists every camera seen or cached, sorted by ID
func (st *StateTracker) Cameras() []CameraStatus {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make(map[string]bool)
	for id := range st.results {
		ids[id] = true
	}
	for id := range st.calibrations {
		ids[id] = true
	}

	out := make([]CameraStatus, 0, len(ids))
	for id := range ids {
		status := CameraStatus{
			CameraID:   id,
			Calibrated: st.calibrations[id] != nil,
			Detections: st.detections[id],
			Failures:   st.failures[id],
		}
		if r := st.results[id]; r != nil {
			status.LastError = r.Error
			status.LastTimestamp = r.Timestamp.Unix()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// Cache snapshots the calibrations for persistence
func (st *StateTracker) Cache() *CalibrationCache {
	return &CalibrationCache{Cameras: st.Calibrations()}
}
