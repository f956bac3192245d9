// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fieldops-sim/internal/geo"
)

// City is a reference city used for random route endpoints and terrain classification.
type City struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Bounds is the operational bounding box in YAML form.
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Geo converts to the geo package representation.
func (b Bounds) Geo() geo.Bounds {
	return geo.Bounds{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
}

// SpeedBand defines the speed envelope for one terrain type.
type SpeedBand struct {
	Terrain string  `yaml:"terrain"`
	MinKmh  float64 `yaml:"min_kmh"`
	MaxKmh  float64 `yaml:"max_kmh"`
}

// AnomalyRule configures one injectable anomaly kind.
type AnomalyRule struct {
	Probability  float64              `yaml:"probability"`
	SeverityLow  float64              `yaml:"severity_low"`
	SeverityHigh float64              `yaml:"severity_high"`
	Parameters   map[string][]float64 `yaml:"parameters"`
}

// InjectionConfig holds the injection gate and per-kind rules.
type InjectionConfig struct {
	GlobalProbability float64                `yaml:"global_probability"`
	MaxPerMission     int                    `yaml:"max_per_mission"`
	Rules             map[string]AnomalyRule `yaml:"rules"`
}

// DetectorConfig holds outlier model settings and the artifacts location.
type DetectorConfig struct {
	ArtifactsDir       string  `yaml:"artifacts_dir"`
	Trees              int     `yaml:"trees"`
	SampleSize         int     `yaml:"sample_size"`
	Contamination      float64 `yaml:"contamination"`
	Seed               int64   `yaml:"seed"`
	TrainingWindowDays int     `yaml:"training_window_days"`
	TrainingLimit      int     `yaml:"training_limit"`
}

// SimulationConfig is the root configuration for the mission pipeline.
type SimulationConfig struct {
	Bounds           Bounds          `yaml:"bounds"`
	Cities           []City          `yaml:"cities"`
	SpeedBands       []SpeedBand     `yaml:"speed_bands"`
	UrbanRadiusKM    float64         `yaml:"urban_radius_km"`
	Injection        InjectionConfig `yaml:"injection"`
	Detector         DetectorConfig  `yaml:"detector"`
	CycleIntervalSec int             `yaml:"cycle_interval_seconds"`
	MissionDelaySec  float64         `yaml:"mission_delay_seconds"`
	PointDelayMs     int             `yaml:"point_delay_ms"`
	DeviceID         string          `yaml:"device_id"`
}

// CycleInterval returns the orchestration loop interval.
func (c *SimulationConfig) CycleInterval() time.Duration {
	if c.CycleIntervalSec <= 0 {
		return 2000 * time.Second
	}
	return time.Duration(c.CycleIntervalSec) * time.Second
}

// MissionDelay returns the throttle pause between missions within a pass.
func (c *SimulationConfig) MissionDelay() time.Duration {
	if c.MissionDelaySec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.MissionDelaySec * float64(time.Second))
}

// PointDelay returns the pause between published trajectory points.
func (c *SimulationConfig) PointDelay() time.Duration {
	if c.PointDelayMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PointDelayMs) * time.Millisecond
}

// Band returns the speed band for the given terrain, falling back to urban limits.
func (c *SimulationConfig) Band(terrain string) SpeedBand {
	for _, b := range c.SpeedBands {
		if b.Terrain == terrain {
			return b
		}
	}
	return SpeedBand{Terrain: terrain, MinKmh: 20, MaxKmh: 50}
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.Cities) == 0 {
		return nil, fmt.Errorf("config: at least one reference city is required")
	}
	return cfg, nil
}

// Default returns the built-in configuration: the Morocco bounding box, ten
// reference cities, and the stock anomaly rules.
func Default() *SimulationConfig {
	return &SimulationConfig{
		Bounds: Bounds{MinLat: 27.6, MaxLat: 35.9, MinLon: -13.2, MaxLon: -1.0},
		Cities: []City{
			{Name: "Casablanca", Lat: 33.5731, Lon: -7.5898},
			{Name: "Rabat", Lat: 34.0209, Lon: -6.8416},
			{Name: "Marrakech", Lat: 31.6295, Lon: -7.9811},
			{Name: "Fes", Lat: 34.0181, Lon: -5.0078},
			{Name: "Tanger", Lat: 35.7595, Lon: -5.8340},
			{Name: "Agadir", Lat: 30.4278, Lon: -9.5981},
			{Name: "Meknes", Lat: 33.8935, Lon: -5.5473},
			{Name: "Oujda", Lat: 34.6814, Lon: -1.9086},
			{Name: "Kenitra", Lat: 34.2610, Lon: -6.5802},
			{Name: "Tetouan", Lat: 35.5889, Lon: -5.3626},
		},
		// highway and mountain bands are present but the terrain classifier
		// only yields urban/rural; see DESIGN.md.
		SpeedBands: []SpeedBand{
			{Terrain: "urban", MinKmh: 20, MaxKmh: 50},
			{Terrain: "highway", MinKmh: 60, MaxKmh: 120},
			{Terrain: "rural", MinKmh: 40, MaxKmh: 80},
			{Terrain: "mountain", MinKmh: 15, MaxKmh: 40},
		},
		UrbanRadiusKM: 20,
		Injection: InjectionConfig{
			GlobalProbability: 0.3,
			MaxPerMission:     5,
			Rules: map[string]AnomalyRule{
				"EARLY_RETURN": {
					Probability: 0.15, SeverityLow: 0.6, SeverityHigh: 0.9,
					Parameters: map[string][]float64{
						"early_return_ratio": {0.3, 0.7},
						"detour_distance_km": {5, 15},
					},
				},
				"ROUTE_DEVIATION": {
					Probability: 0.25, SeverityLow: 0.4, SeverityHigh: 0.8,
					Parameters: map[string][]float64{
						"deviation_distance_km":  {2, 10},
						"deviation_duration_min": {15, 60},
					},
				},
				"UNAUTHORIZED_STOP": {
					Probability: 0.20, SeverityLow: 0.3, SeverityHigh: 0.7,
					Parameters: map[string][]float64{
						"stop_duration_min": {10, 120},
						"stop_frequency":    {1, 3},
					},
				},
				"ABNORMAL_SPEED": {
					Probability: 0.30, SeverityLow: 0.2, SeverityHigh: 0.6,
					Parameters: map[string][]float64{
						"speed_factor": {0.1, 2.5},
						"duration_min": {5, 30},
					},
				},
				"OUT_OF_HOURS": {
					Probability: 0.10, SeverityLow: 0.5, SeverityHigh: 0.9,
					Parameters: map[string][]float64{
						"early_start_hours": {1, 3},
						"late_end_hours":    {1, 4},
					},
				},
			},
		},
		Detector: DetectorConfig{
			ArtifactsDir:       "models",
			Trees:              100,
			SampleSize:         256,
			Contamination:      0.1,
			Seed:               42,
			TrainingWindowDays: 30,
			TrainingLimit:      100,
		},
		CycleIntervalSec: 2000,
		MissionDelaySec:  2,
		PointDelayMs:     100,
		DeviceID:         "fieldops-sim",
	}
}
