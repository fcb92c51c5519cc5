package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kwv/courtmesh/court"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile       string
	CalibrationCache string
	CameraID         string

	Detect       bool
	SegmentsFile string
	OutputJSON   string
	SVGFile      string
	PNGFile      string
	GeoJSONFile  string
	DebugDir     string

	MqttMode bool
	HttpMode bool
	HttpPort int
}

// Runner is the application surface driven by run
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunDetect()
	RunService()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("courtmesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.CalibrationCache, "calibration-cache", court.DefaultCalibrationCachePath, "Path to calibration cache file")
	fs.StringVar(&opts.CameraID, "camera", "cli", "Camera ID used for --detect results")
	fs.BoolVar(&opts.Detect, "detect", false, "Run detection on a segment file and exit")
	fs.StringVar(&opts.SegmentsFile, "segments", "segments.json", "Segment file (JSON or YAML) for --detect")
	fs.StringVar(&opts.OutputJSON, "output-json", "", "Write the detection result as JSON")
	fs.StringVar(&opts.SVGFile, "svg", "", "Write a debug SVG of the detection")
	fs.StringVar(&opts.PNGFile, "png", "", "Write a debug PNG of the detection")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write the detection as GeoJSON")
	fs.StringVar(&opts.DebugDir, "debug-dir", "", "Write one SVG per pipeline stage into this directory")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode for live camera calibration")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for calibration state")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "courtmesh version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.Detect:
		app.RunDetect()
	case opts.MqttMode || opts.HttpMode:
		app.RunService()
	default:
		fmt.Fprintln(out, "courtmesh service starting...")
		fmt.Fprintln(out, "Use --detect --segments FILE to calibrate from a segment file")
		fmt.Fprintln(out, "Use --mqtt to run MQTT service mode")
		fmt.Fprintln(out, "Use --http to run HTTP server mode")
		fmt.Fprintln(out, "Use --mqtt --http to run both MQTT and HTTP together")
		fmt.Fprintln(out, "\nConfiguration:")
		fmt.Fprintln(out, "  config.yaml - court, clustering, labeling, MQTT and camera settings")
		fmt.Fprintln(out, "  .calibration-cache.json - last good calibration per camera")
	}
	return nil
}
