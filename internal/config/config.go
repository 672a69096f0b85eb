package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/speedtrap/internal/correlation"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/sensor"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/radar.defaults.json"

// Defaults used when a field is omitted.
const (
	DefaultSensorDistanceMM     = 4000
	DefaultLightLimitKPH        = 60
	DefaultHeavyLimitKPH        = 80
	DefaultWarningPercent       = 90
	DefaultCameraFailurePercent = 10
	DefaultCameraMinDelay       = 120 * time.Millisecond
	DefaultCameraMaxDelay       = 320 * time.Millisecond
	DefaultQueueCapacity        = 8
	DefaultCorrelationCapacity  = 8
	DefaultPublishTimeout       = 50 * time.Millisecond
	DefaultEvictionPolicy       = "first_slot"
	DefaultTallyWindow          = 500
)

// RadarConfig is the station configuration. Every field is optional; the
// Get* methods fall back to the defaults above, so partial files are valid.
type RadarConfig struct {
	// Site
	SensorDistanceMM *int `json:"sensor_distance_mm,omitempty"`
	LightLimitKPH    *int `json:"light_limit_kph,omitempty"`
	HeavyLimitKPH    *int `json:"heavy_limit_kph,omitempty"`
	WarningPercent   *int `json:"warning_percent,omitempty"`

	// Simulated camera
	CameraFailurePercent *int    `json:"camera_failure_percent,omitempty"`
	CameraMinDelay       *string `json:"camera_min_delay,omitempty"` // duration string like "120ms"
	CameraMaxDelay       *string `json:"camera_max_delay,omitempty"`

	// Pipeline
	QueueCapacity       *int    `json:"queue_capacity,omitempty"`
	CorrelationCapacity *int    `json:"correlation_capacity,omitempty"`
	PublishTimeout      *string `json:"publish_timeout,omitempty"`
	EvictionPolicy      *string `json:"eviction_policy,omitempty"` // "first_slot" or "oldest"
	TallyWindow         *int    `json:"tally_window,omitempty"`

	// Serial sensor board (optional)
	Serial *sensor.PortOptions `json:"serial,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// DefaultRadarConfig returns a RadarConfig with every field set to its
// default.
func DefaultRadarConfig() *RadarConfig {
	return &RadarConfig{
		SensorDistanceMM:     ptrInt(DefaultSensorDistanceMM),
		LightLimitKPH:        ptrInt(DefaultLightLimitKPH),
		HeavyLimitKPH:        ptrInt(DefaultHeavyLimitKPH),
		WarningPercent:       ptrInt(DefaultWarningPercent),
		CameraFailurePercent: ptrInt(DefaultCameraFailurePercent),
		CameraMinDelay:       ptrString(DefaultCameraMinDelay.String()),
		CameraMaxDelay:       ptrString(DefaultCameraMaxDelay.String()),
		QueueCapacity:        ptrInt(DefaultQueueCapacity),
		CorrelationCapacity:  ptrInt(DefaultCorrelationCapacity),
		PublishTimeout:       ptrString(DefaultPublishTimeout.String()),
		EvictionPolicy:       ptrString(DefaultEvictionPolicy),
		TallyWindow:          ptrInt(DefaultTallyWindow),
	}
}

// LoadConfig loads a RadarConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*RadarConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RadarConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func checkRange(name string, v *int, lo, hi int) error {
	if v != nil && (*v < lo || *v > hi) {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, *v)
	}
	return nil
}

func checkDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *RadarConfig) Validate() error {
	const maxKPH = 1000
	checks := []error{
		checkRange("sensor_distance_mm", c.SensorDistanceMM, 1, 1_000_000),
		checkRange("light_limit_kph", c.LightLimitKPH, 1, maxKPH),
		checkRange("heavy_limit_kph", c.HeavyLimitKPH, 1, maxKPH),
		checkRange("warning_percent", c.WarningPercent, 1, 100),
		checkRange("camera_failure_percent", c.CameraFailurePercent, 0, 100),
		checkRange("queue_capacity", c.QueueCapacity, 1, 1<<16),
		checkRange("correlation_capacity", c.CorrelationCapacity, 1, 1<<16),
		checkRange("tally_window", c.TallyWindow, 1, 1<<20),
		checkDuration("camera_min_delay", c.CameraMinDelay),
		checkDuration("camera_max_delay", c.CameraMaxDelay),
		checkDuration("publish_timeout", c.PublishTimeout),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.EvictionPolicy != nil {
		if _, ok := correlation.ParseEvictionPolicy(*c.EvictionPolicy); !ok {
			return fmt.Errorf("eviction_policy must be \"first_slot\" or \"oldest\", got %q", *c.EvictionPolicy)
		}
	}
	if c.GetCameraMaxDelay() <= 0 {
		return fmt.Errorf("camera_max_delay must be positive, got %s", c.GetCameraMaxDelay())
	}
	if c.GetCameraMaxDelay() < c.GetCameraMinDelay() {
		return fmt.Errorf("camera_max_delay %s is below camera_min_delay %s",
			c.GetCameraMaxDelay(), c.GetCameraMinDelay())
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetSensorDistanceMM returns the spacing between the two sensors.
func (c *RadarConfig) GetSensorDistanceMM() int {
	return intOr(c.SensorDistanceMM, DefaultSensorDistanceMM)
}

// GetLightLimitKPH returns the speed limit for light vehicles.
func (c *RadarConfig) GetLightLimitKPH() int {
	return intOr(c.LightLimitKPH, DefaultLightLimitKPH)
}

// GetHeavyLimitKPH returns the speed limit for heavy vehicles.
func (c *RadarConfig) GetHeavyLimitKPH() int {
	return intOr(c.HeavyLimitKPH, DefaultHeavyLimitKPH)
}

// GetWarningPercent returns the warning threshold as a percentage of the limit.
func (c *RadarConfig) GetWarningPercent() int {
	return intOr(c.WarningPercent, DefaultWarningPercent)
}

// GetCameraFailurePercent returns the simulated capture failure rate.
func (c *RadarConfig) GetCameraFailurePercent() int {
	return intOr(c.CameraFailurePercent, DefaultCameraFailurePercent)
}

func (c *RadarConfig) GetCameraMinDelay() time.Duration {
	return durationOr(c.CameraMinDelay, DefaultCameraMinDelay)
}

func (c *RadarConfig) GetCameraMaxDelay() time.Duration {
	return durationOr(c.CameraMaxDelay, DefaultCameraMaxDelay)
}

func (c *RadarConfig) GetQueueCapacity() int {
	return intOr(c.QueueCapacity, DefaultQueueCapacity)
}

func (c *RadarConfig) GetCorrelationCapacity() int {
	return intOr(c.CorrelationCapacity, DefaultCorrelationCapacity)
}

func (c *RadarConfig) GetPublishTimeout() time.Duration {
	return durationOr(c.PublishTimeout, DefaultPublishTimeout)
}

func (c *RadarConfig) GetTallyWindow() int {
	return intOr(c.TallyWindow, DefaultTallyWindow)
}

// GetEvictionPolicy returns the correlation table overflow policy.
func (c *RadarConfig) GetEvictionPolicy() correlation.EvictionPolicy {
	if c.EvictionPolicy == nil {
		return correlation.EvictFirstSlot
	}
	p, _ := correlation.ParseEvictionPolicy(*c.EvictionPolicy)
	return p
}

// GetSerial returns the serial port options with unset values defaulted.
func (c *RadarConfig) GetSerial() sensor.PortOptions {
	var opts sensor.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	if n, err := opts.Normalize(); err == nil {
		return n
	}
	return opts
}

// Limits returns the site limits used by the classifier.
func (c *RadarConfig) Limits() radar.Limits {
	return radar.Limits{
		DistanceMM:     uint32(c.GetSensorDistanceMM()),
		LightLimitKPH:  uint32(c.GetLightLimitKPH()),
		HeavyLimitKPH:  uint32(c.GetHeavyLimitKPH()),
		WarningPercent: uint32(c.GetWarningPercent()),
	}
}
