package court

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentSet is the payload exchanged with segment detectors, as a file or an
// MQTT message: {"width": W, "height": H, "segments": [[x1, y1, x2, y2], ...]}.
type SegmentSet struct {
	Width    int          `json:"width" yaml:"width"`
	Height   int          `json:"height" yaml:"height"`
	Segments []RawSegment `json:"segments" yaml:"segments"`
}

// Validate rejects empty images and non-finite or zero-length segments
func (s *SegmentSet) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", s.Width, s.Height)
	}
	for i, seg := range s.Segments {
		for _, v := range seg {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("segment %d has a non-finite coordinate", i)
			}
		}
		if seg[0] == seg[2] && seg[1] == seg[3] {
			return fmt.Errorf("segment %d has zero length", i)
		}
	}
	return nil
}

// ParseSegmentSet decodes a JSON or YAML payload
func ParseSegmentSet(data []byte) (*SegmentSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty segment payload")
	}

	var set SegmentSet
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &set); err != nil {
			return nil, fmt.Errorf("parsing segment JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &set); err != nil {
		return nil, fmt.Errorf("parsing segment YAML: %w", err)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadSegmentFile reads a segment file; .yaml and .yml are YAML, anything else is
// sniffed like an MQTT payload
func LoadSegmentFile(path string) (*SegmentSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("segment file not found: %s", path)
		}
		return nil, fmt.Errorf("reading segment file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var set SegmentSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parsing segment YAML: %w", err)
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &set, nil
	}

	set, err := ParseSegmentSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// SaveSegmentFile writes a segment set as indented JSON
func SaveSegmentFile(path string, set *SegmentSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling segments: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing segment file: %w", err)
	}
	return nil
}
