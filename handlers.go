package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kwv/courtmesh/court"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *court.StateTracker, c *court.Court) http.Handler {
	mux := http.NewServeMux()
	renderer := court.NewDebugRenderer(c)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			Calibrated int       `json:"calibrated"`
			CourtType  string    `json:"courtType"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			Calibrated: len(stateTracker.Calibrations()),
			CourtType:  c.Type,
		}
		writeJSONResponse(w, status)
	})

	mux.HandleFunc("GET /cameras", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, stateTracker.Cameras())
	})

	mux.HandleFunc("GET /cameras/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if result, ok := stateTracker.Result(id); ok {
			writeJSONResponse(w, result)
			return
		}
		// cached calibration from a previous run
		if calib, ok := stateTracker.Calibration(id); ok {
			writeJSONResponse(w, &court.CameraResult{CameraID: id, Calibration: calib})
			return
		}
		http.Error(w, "Unknown camera", http.StatusNotFound)
	})

	mux.HandleFunc("GET /cameras/{id}/lines.geojson", func(w http.ResponseWriter, r *http.Request) {
		d, ok := stateTracker.LastDetection(r.PathValue("id"))
		if !ok {
			http.Error(w, "No detection available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(court.DetectionGeoJSON(d, c)); err != nil {
			log.Printf("Error encoding GeoJSON: %v", err)
		}
	})

	mux.HandleFunc("GET /cameras/{id}/debug.svg", func(w http.ResponseWriter, r *http.Request) {
		d, ok := stateTracker.LastDetection(r.PathValue("id"))
		if !ok {
			http.Error(w, "No detection available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderSVG(w, d); err != nil {
			log.Printf("Error rendering debug SVG: %v", err)
		}
	})

	return mux
}

func writeJSONResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
