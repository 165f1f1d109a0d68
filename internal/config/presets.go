package config

import (
	"sort"

	"github.com/samber/lo"

	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/session"
)

var wallRot = session.Vec3{0.557, 0.118, -180.000}

// Levels holds the built-in crash geometries, keyed by level name.
var Levels = map[string]scenario.Geometry{
	"gridmap_v2": {
		Level: "gridmap_v2",
		Spawn: []session.Pose{
			{Pos: session.Vec3{-268, 56, 100.5}},
			{Pos: session.Vec3{-275, 56, 100.5}},
		},
		Idle: session.Pose{Pos: session.Vec3{-269.604, 75, 100.5}},
		Layouts: map[string]scenario.Layout{
			scenario.Pole: {
				Poses: []session.Pose{
					{Pos: session.Vec3{-269.604, 57.547, 100.5}, Rot: wallRot},
				},
				Obstacle:   &session.Vec3{-285, 56, 100.5},
				OffsetAxis: 1,
			},
			scenario.TBone: {
				Poses: []session.Pose{
					{Pos: session.Vec3{-269.604, 57.547, 100.5}, Rot: wallRot},
					{Pos: session.Vec3{-269.604, 75, 100.5}, Rot: session.Vec3{0, 0, 90}},
				},
				OffsetAxis:  0,
				FlipVehicle: 1,
			},
			scenario.Linear: {
				Poses: []session.Pose{
					{Pos: session.Vec3{-277.275, 87.664, 100.303}, Rot: session.Vec3{0, 0, 180}},
					{Pos: session.Vec3{-267.275, 200.059, 100.303}, Rot: session.Vec3{0, 0, 180}},
				},
				OffsetAxis:  0,
				FlipVehicle: 1,
			},
			scenario.NoCrash: {
				Poses: []session.Pose{
					{Pos: session.Vec3{-268, 56, 100.5}},
				},
				OffsetAxis: 1,
			},
		},
	},
}

func GetLevel(name string) (scenario.Geometry, bool) {
	g, ok := Levels[name]
	return g, ok
}

func ListLevels() []string {
	names := lo.Keys(Levels)
	sort.Strings(names)
	return names
}

// ETK800Parts is the configurable part catalog of the default vehicle.
func ETK800Parts() scenario.PartCatalog {
	return scenario.PartCatalog{
		Slots: map[string][]string{
			"etk_bumper_F":       {"etk_bumper_F", "etk_bumper_F_sport", "etk_bumper_F_alt"},
			"etk_bumper_R":       {"etk_bumper_R", "etk_bumper_R_sport"},
			"etk_hood":           {"etk_hood", "etk_hood_vent", "etk_hood_carbon"},
			"etk_fender_L":       {"etk_fender_L", "etk_fender_L_flared"},
			"etk_fender_R":       {"etk_fender_R", "etk_fender_R_flared"},
			"etk_door_FL":        {"etk_door_FL", "etk_door_FL_light"},
			"etk_door_FR":        {"etk_door_FR", "etk_door_FR_light"},
			"etk_headlight_L":    {"etk_headlight_L", "etk_headlight_L_xenon", "etk_headlight_L_led"},
			"etk_headlight_R":    {"etk_headlight_R", "etk_headlight_R_xenon", "etk_headlight_R_led"},
			"etk800_bumperbar_F": {"etk800_bumperbar_F"},
			"etk800_hitch":       {"etk800_hitch", "etk800_hitch_heavy"},
		},
		Removable: []string{"etk800_bumperbar_F", "etk800_hitch"},
	}
}

// DefaultSpaces is the parameter shape of each built-in category.
func DefaultSpaces() map[string]scenario.Spec {
	return map[string]scenario.Spec{
		scenario.Pole: {
			Offset:   scenario.Range{Min: -0.5, Max: 0.5, N: 5},
			Angle:    scenario.Range{Min: -30, Max: 30, N: 7},
			Throttle: scenario.Range{Min: 0.3, Max: 1, N: 8},
			MaxSpeed: 80,
			Driven:   1,
		},
		scenario.TBone: {
			Offset:   scenario.Range{Min: -1.5, Max: 1.5, N: 7},
			Angle:    scenario.Range{Min: -20, Max: 20, N: 5},
			Throttle: scenario.Range{Min: 0.3, Max: 1, N: 8},
			MaxSpeed: 70,
			Driven:   1,
		},
		scenario.Linear: {
			Offset:    scenario.Range{Min: -1, Max: 1, N: 5},
			Angle:     scenario.Range{Min: -10, Max: 10, N: 5},
			Throttle:  scenario.Range{Min: 0.5, Max: 1, N: 6},
			MaxSpeed:  54,
			Autopilot: true,
			Driven:    1,
		},
		scenario.NoCrash: {
			Offset:   scenario.Range{Min: 0, Max: 0, N: 1},
			Angle:    scenario.Range{Min: -45, Max: 45, N: 7},
			Throttle: scenario.Range{Min: 0.2, Max: 1, N: 5},
			MaxSpeed: 60,
			Driven:   1,
		},
	}
}
