package court

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSegmentSet_JSON(t *testing.T) {
	payload := `{"width": 1280, "height": 720, "segments": [[10, 20, 300, 25], [640, 378, 640, 100]]}`

	set, err := ParseSegmentSet([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSegmentSet: %v", err)
	}
	if set.Width != 1280 || set.Height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", set.Width, set.Height)
	}
	if len(set.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(set.Segments))
	}
	if set.Segments[1] != (RawSegment{640, 378, 640, 100}) {
		t.Errorf("Segments[1] = %v", set.Segments[1])
	}
}

func TestParseSegmentSet_YAML(t *testing.T) {
	payload := `
width: 640
height: 480
segments:
  - [0, 0, 100, 5]
  - [50, 400, 60, 20]
`
	set, err := ParseSegmentSet([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSegmentSet: %v", err)
	}
	if len(set.Segments) != 2 || set.Segments[0][2] != 100 {
		t.Errorf("Segments = %v", set.Segments)
	}
}

func TestParseSegmentSet_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"empty", "   ", "empty segment payload"},
		{"bad json", `{"width": `, "parsing segment JSON"},
		{"no size", `{"segments": [[0, 0, 1, 1]]}`, "invalid image size"},
		{"zero length", `{"width": 10, "height": 10, "segments": [[5, 5, 5, 5]]}`, "zero length"},
		{"bad yaml", "width: [", "parsing segment YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSegmentSet([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestSegmentSet_ValidateNonFinite(t *testing.T) {
	set := &SegmentSet{Width: 10, Height: 10, Segments: []RawSegment{{0, 0, math.Inf(1), 1}}}
	if err := set.Validate(); err == nil || !strings.Contains(err.Error(), "non-finite") {
		t.Errorf("Validate() = %v, want non-finite error", err)
	}
}

func TestSegmentFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cam := broadcastCamera()
	set := &SegmentSet{Width: cam.width, Height: cam.height, Segments: courtScene(t, cam)}

	path := filepath.Join(dir, "segments.json")
	if err := SaveSegmentFile(path, set); err != nil {
		t.Fatalf("SaveSegmentFile: %v", err)
	}
	loaded, err := LoadSegmentFile(path)
	if err != nil {
		t.Fatalf("LoadSegmentFile: %v", err)
	}
	if len(loaded.Segments) != len(set.Segments) {
		t.Fatalf("len(Segments) = %d, want %d", len(loaded.Segments), len(set.Segments))
	}
	for i := range set.Segments {
		if loaded.Segments[i] != set.Segments[i] {
			t.Errorf("Segments[%d] = %v, want %v", i, loaded.Segments[i], set.Segments[i])
		}
	}
}

func TestLoadSegmentFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.yml")
	body := "width: 100\nheight: 100\nsegments:\n  - [1, 2, 3, 4]\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	set, err := LoadSegmentFile(path)
	if err != nil {
		t.Fatalf("LoadSegmentFile: %v", err)
	}
	if set.Segments[0] != (RawSegment{1, 2, 3, 4}) {
		t.Errorf("Segments[0] = %v", set.Segments[0])
	}

	_, err = LoadSegmentFile(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "segment file not found") {
		t.Errorf("LoadSegmentFile(missing) = %v, want not found", err)
	}
}
