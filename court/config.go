package court

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the unified configuration for detection and the camera service.
type Config struct {
	Court      CourtConfig                `yaml:"court" json:"court"`
	Clustering ClusterConfig              `yaml:"clustering" json:"clustering"`
	Labeling   LabelConfig                `yaml:"labeling" json:"labeling"`
	Pose       PoseConfig                 `yaml:"pose" json:"pose"`
	Courts     map[string]CourtDefinition `yaml:"courts,omitempty" json:"courts,omitempty"` // extra court types
	MQTT       MQTTConfig                 `yaml:"mqtt" json:"mqtt"`
	Cameras    []CameraConfig             `yaml:"cameras" json:"cameras"`
}

// CourtConfig selects the court type and numerical tolerance.
type CourtConfig struct {
	Type      string `yaml:"type" json:"type"`
	Tolerance `yaml:",inline"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username" json:"username"`
	Password      string `yaml:"password" json:"-"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
}

// CameraConfig maps a camera to the topic carrying its segment payloads
type CameraConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Court:      CourtConfig{Type: CourtITF, Tolerance: DefaultTolerance()},
		Clustering: DefaultClusterConfig(),
		Labeling:   DefaultLabelConfig(),
		Pose:       PoseConfig{Refine: true},
	}
}

// LoadConfig loads a YAML file over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the detection sections and any configured cameras
func (c *Config) Validate() error {
	table := DefaultCourtTable()
	for name, def := range c.Courts {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("courts.%s: %w", name, err)
		}
		table[name] = def
	}
	if _, ok := table[c.Court.Type]; !ok {
		return fmt.Errorf("court.type %q is not a known court", c.Court.Type)
	}
	if c.Court.Epsilon < 0 {
		return fmt.Errorf("court.eps must not be negative")
	}

	if c.Clustering.RadiusThreshold <= 0 {
		return fmt.Errorf("clustering.radiusThreshold must be positive")
	}
	if c.Clustering.AngleThresholdDeg <= 0 {
		return fmt.Errorf("clustering.angleThreshold must be positive")
	}
	if _, err := NewClusteringStrategy(c.Clustering); err != nil {
		return fmt.Errorf("clustering.strategy: %w", err)
	}
	if c.Labeling.DistanceThreshold <= 0 {
		return fmt.Errorf("labeling.distanceThreshold must be positive")
	}

	seen := make(map[string]bool)
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera[%d].id is required", i)
		}
		if cam.Topic == "" {
			return fmt.Errorf("camera[%d].topic is required for %s", i, cam.ID)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera[%d].id %s is duplicated", i, cam.ID)
		}
		seen[cam.ID] = true
	}
	return nil
}

// ValidateService checks the settings the MQTT service needs on top of Validate
func (c *Config) ValidateService() error {
	if c.MQTT.Broker == "" && os.Getenv("MQTT_BROKER") == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera must be defined")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
