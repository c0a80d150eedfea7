// Package config holds the single runtime configuration table shared by the
// navmesh, pathing, avoidance, character and movement packages.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Configuration is the full key/default/effect table of the movement core.
// A single instance is normally shared (read-only after startup) across
// NavQuery, PathValidator, PathfindingService, LocalAvoidance and
// MovementController.
type Configuration struct {
	PathValidationInterval float32 `yaml:"path_validation_interval"`
	LocalAvoidanceRadius   float32 `yaml:"local_avoidance_radius"`
	ReplanCooldown         float32 `yaml:"replan_cooldown"`
	MaxAvoidanceNeighbors  int     `yaml:"max_avoidance_neighbors"`

	WaypointReachedThreshold    float32 `yaml:"waypoint_reached_threshold"`
	DestinationReachedThreshold float32 `yaml:"destination_reached_threshold"`

	EnableLocalAvoidance      bool `yaml:"enable_local_avoidance"`
	EnableAutomaticReplanning bool `yaml:"enable_automatic_replanning"`

	AvoidanceStrength float32 `yaml:"avoidance_strength"`
	SeparationRadius  float32 `yaml:"separation_radius"`

	PathfindingSearchExtentsHorizontal float32 `yaml:"pathfinding_search_extents_horizontal"`
	PathfindingSearchExtentsVertical   float32 `yaml:"pathfinding_search_extents_vertical"`

	VerticalSearchExtent   float32 `yaml:"vertical_search_extent"`
	HorizontalSearchExtent float32 `yaml:"horizontal_search_extent"`

	EdgeCheckDistanceMultiplier float32 `yaml:"edge_check_distance_multiplier"`
	MaxSafeDropDistance         float32 `yaml:"max_safe_drop_distance"`
	FloorLevelTolerance         float32 `yaml:"floor_level_tolerance"`

	MaxPathSegmentClimb    float32 `yaml:"max_path_segment_climb"`
	MaxPathSegmentSlopeDeg float32 `yaml:"max_path_segment_slope_deg"`

	EnablePathValidation bool `yaml:"enable_path_validation"`
	EnablePathAutoFix    bool `yaml:"enable_path_auto_fix"`

	// The following keys are not present in spec.md's configuration table but
	// are load-bearing constants for the locomotion state machine (spec.md
	// §4.E, §8); they're promoted to Configuration rather than hardcoded so
	// every tuning knob lives in one place (see DESIGN.md Open Questions).
	StabilityThreshold              float32 `yaml:"stability_threshold"`
	GroundedUpwardVelocityThreshold float32 `yaml:"grounded_upward_velocity_threshold"`
	GroundedDownwardVelocityCap     float32 `yaml:"grounded_downward_velocity_cap"`
	MotorStrength                   float32 `yaml:"motor_strength"`
	MaxVerticalCorrection           float32 `yaml:"max_vertical_correction"`
	VerticalCorrectionTolerance     float32 `yaml:"vertical_correction_tolerance"`
	VerticalCorrectionGain          float32 `yaml:"vertical_correction_gain"`
}

// Default returns the configuration with every key set to the default
// documented in spec.md §6.
func Default() Configuration {
	return Configuration{
		PathValidationInterval: 0.5,
		LocalAvoidanceRadius:   5.0,
		ReplanCooldown:         1.0,
		MaxAvoidanceNeighbors:  5,

		WaypointReachedThreshold:    0.5,
		DestinationReachedThreshold: 0.3,

		EnableLocalAvoidance:      true,
		EnableAutomaticReplanning: true,

		AvoidanceStrength: 2.0,
		SeparationRadius:  2.0,

		PathfindingSearchExtentsHorizontal: 5.0,
		PathfindingSearchExtentsVertical:   10.0,

		VerticalSearchExtent:   5.0,
		HorizontalSearchExtent: 2.0,

		EdgeCheckDistanceMultiplier: 2.5,
		MaxSafeDropDistance:         2.0,
		FloorLevelTolerance:         3.0,

		MaxPathSegmentClimb:    0.5,
		MaxPathSegmentSlopeDeg: 45.0,

		EnablePathValidation: true,
		EnablePathAutoFix:    true,

		StabilityThreshold:              0.5,
		GroundedUpwardVelocityThreshold: 0.01,
		GroundedDownwardVelocityCap:     1.0,
		MotorStrength:                   0.3,
		MaxVerticalCorrection:           3.0,
		VerticalCorrectionTolerance:     0.05,
		VerticalCorrectionGain:          8.0,
	}
}

// Load reads a Configuration from a YAML file, starting from Default() so
// that a file overriding only a handful of keys still yields a complete
// configuration. Mirrors how the teacher's recast.yml build settings are
// loaded in cmd/recast.
func Load(path string) (Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
