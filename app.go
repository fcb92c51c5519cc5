package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/kwv/courtmesh/court"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *court.Config
	Detector     *court.Detector
	StateTracker *court.StateTracker
	MQTTClient   *court.MQTTClient
	Publisher    *court.Publisher

	opts    AppOptions
	cacheMu sync.Mutex
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: court.NewStateTracker(nil),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file. A missing file at the default path falls
// back to the built-in defaults; an explicit path must exist.
func (a *App) loadConfig() (*court.Config, error) {
	path := a.opts.ConfigFile
	if path == "" {
		return court.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "config.yaml" {
		log.Printf("No %s found, using default configuration", path)
		return court.DefaultConfig(), nil
	}
	config, err := court.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded config from %s", path)
	return config, nil
}

// RunDetect runs one detection from a segment file and writes the requested outputs
func (a *App) RunDetect() {
	if err := a.detect(os.Stdout); err != nil {
		log.Fatalf("Detection failed: %v", err)
	}
}

func (a *App) detect(out io.Writer) error {
	config, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.Config = config

	detector, err := court.NewDetector(config)
	if err != nil {
		return fmt.Errorf("building detector: %w", err)
	}
	renderer := court.NewDebugRenderer(detector.Court)
	if a.opts.DebugDir != "" {
		detector.Observe(court.DebugObserver(a.opts.DebugDir, a.opts.CameraID, renderer, func(err error) {
			log.Printf("Warning: debug output: %v", err)
		}))
	}

	set, err := court.LoadSegmentFile(a.opts.SegmentsFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d segments (%dx%d) from %s\n", len(set.Segments), set.Width, set.Height, a.opts.SegmentsFile)

	d, err := detector.Detect(set.Width, set.Height, set.Segments)
	result := court.NewCameraResult(a.opts.CameraID, d, err)
	if a.opts.OutputJSON != "" {
		if werr := writeJSON(a.opts.OutputJSON, result); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}

	printDetection(out, d)

	if a.opts.SVGFile != "" {
		if err := writeFile(a.opts.SVGFile, func(w io.Writer) error { return renderer.RenderSVG(w, d) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", a.opts.SVGFile)
	}
	if a.opts.PNGFile != "" {
		if err := writeFile(a.opts.PNGFile, func(w io.Writer) error { return renderer.RenderPNG(w, d) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", a.opts.PNGFile)
	}
	if a.opts.GeoJSONFile != "" {
		if err := writeJSON(a.opts.GeoJSONFile, court.DetectionGeoJSON(d, detector.Court)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", a.opts.GeoJSONFile)
	}
	return nil
}

func printDetection(out io.Writer, d *court.Detection) {
	fmt.Fprintf(out, "Clusters: %d, merged lines: %d\n", len(d.Clusters), len(d.Lines))
	fmt.Fprintln(out, "Labels:")
	l := d.Labels
	for _, role := range []struct {
		name string
		line court.LineSegment
	}{
		{court.RoleServeline, l.Serveline},
		{court.RoleBaseline, l.Baseline},
		{court.RoleCenterline, l.Centerline},
		{court.RoleLeftSideline, l.LeftSideline},
		{court.RoleRightSideline, l.RightSideline},
	} {
		fmt.Fprintf(out, "  %-15s %s\n", role.name, role.line)
	}
	fmt.Fprintln(out, "Correspondences:")
	for _, c := range d.Correspondences {
		fmt.Fprintf(out, "  %s image(%.2f, %.2f) -> world(%.2f, %.2f, %.2f)\n",
			c.Label, c.Image.X, c.Image.Y, c.World.X, c.World.Y, c.World.Z)
	}
	if c := d.Calibration; c != nil {
		pos := c.Position()
		fmt.Fprintf(out, "Calibration: f=%.1fpx principal=(%.1f, %.1f) rms=%.3fpx\n",
			c.Intrinsics.Focal, c.Intrinsics.Cx, c.Intrinsics.Cy, c.RMSError)
		fmt.Fprintf(out, "Camera position: (%.2f, %.2f, %.2f) m\n", pos.X, pos.Y, pos.Z)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// handleSegments runs detection for one camera payload, records the result and
// publishes it. Failures are recorded and published; they never stop the service.
func (a *App) handleSegments(cameraID string, set *court.SegmentSet, err error) *court.CameraResult {
	var d *court.Detection
	if err == nil {
		d, err = a.Detector.Detect(set.Width, set.Height, set.Segments)
	}

	result := court.NewCameraResult(cameraID, d, err)
	a.StateTracker.Update(result)

	if err != nil {
		log.Printf("Detection failed for %s: %v", cameraID, err)
	} else {
		log.Printf("%s: calibrated f=%.1fpx rms=%.3fpx from %d segments",
			cameraID, d.Calibration.Intrinsics.Focal, d.Calibration.RMSError, len(d.Segments))
		a.saveCache()
	}

	if a.Publisher != nil {
		if perr := a.Publisher.PublishResult(result); perr != nil {
			log.Printf("Error publishing result for %s: %v", cameraID, perr)
		}
	}
	return result
}

func (a *App) saveCache() {
	if a.opts.CalibrationCache == "" {
		return
	}
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if err := court.SaveCalibrationCache(a.opts.CalibrationCache, a.StateTracker.Cache()); err != nil {
		log.Printf("Warning: Failed to save calibration cache %s: %v", a.opts.CalibrationCache, err)
	}
}

// setupService loads config, cache and detector shared by MQTT and HTTP modes
func (a *App) setupService() error {
	config, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.opts.MqttMode {
		if err := config.ValidateService(); err != nil {
			return err
		}
	}
	a.Config = config

	detector, err := court.NewDetector(config)
	if err != nil {
		return fmt.Errorf("building detector: %w", err)
	}
	a.Detector = detector

	cache, err := court.LoadCalibrationCache(a.opts.CalibrationCache)
	if err != nil {
		log.Printf("Warning: Failed to load calibration cache %s: %v", a.opts.CalibrationCache, err)
	} else if cache != nil {
		log.Printf("Loaded %d cached calibrations from %s", len(cache.Cameras), a.opts.CalibrationCache)
	}
	a.StateTracker = court.NewStateTracker(cache)
	return nil
}

// startMQTT installs the publisher before subscribing, so payloads delivered
// on subscription (retained messages) are published too.
func (a *App) startMQTT(client *court.MQTTClient) {
	a.MQTTClient = client
	a.Publisher = court.NewPublisher(client.Client(), a.StateTracker, a.Config.MQTT.PublishPrefix)
	client.Start()
}

// RunService starts the combined MQTT and/or HTTP service
func (a *App) RunService() {
	fmt.Println("Starting courtmesh service...")

	if err := a.setupService(); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	config := a.Config

	if a.opts.MqttMode {
		mqttClient, err := court.InitMQTT(config, func(cameraID string, set *court.SegmentSet, err error) {
			a.handleSegments(cameraID, set, err)
		})
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}
		a.startMQTT(mqttClient)
		fmt.Println("MQTT calibration publisher initialized")
	}

	if a.opts.HttpMode {
		httpServer := newHTTPServer(a.StateTracker, a.Detector.Court)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")
	fmt.Printf("Court: %s\n", a.Detector.Court.Type)

	if a.Publisher != nil {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, cam := range config.Cameras {
			fmt.Printf("    - %s (%s)\n", cam.Topic, cam.ID)
		}
		fmt.Printf("  Publishing to: %s/{cameraID}\n", a.Publisher.Prefix())
		fmt.Printf("  Combined calibrations: %s/calibrations\n", a.Publisher.Prefix())
	}

	if a.opts.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
		fmt.Println("  GET /health                     - Health check")
		fmt.Println("  GET /cameras                    - Camera status list")
		fmt.Println("  GET /cameras/{id}               - Latest result for a camera")
		fmt.Println("  GET /cameras/{id}/lines.geojson - Latest detection as GeoJSON")
		fmt.Println("  GET /cameras/{id}/debug.svg     - Latest detection as SVG")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	a.saveCache()
	fmt.Println("Service stopped")
}
