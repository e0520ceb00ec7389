package types

import (
	"fmt"
	"strings"
)

// ActivityType is the closed set of Strava activity kinds.
// ref: https://developers.strava.com/docs/reference/#api-models-ActivityType
type ActivityType string

const (
	ActivityAlpineSki       ActivityType = "AlpineSki"
	ActivityBackcountrySki  ActivityType = "BackcountrySki"
	ActivityCanoeing        ActivityType = "Canoeing"
	ActivityCrossfit        ActivityType = "Crossfit"
	ActivityEBikeRide       ActivityType = "EBikeRide"
	ActivityElliptical      ActivityType = "Elliptical"
	ActivityGolf            ActivityType = "Golf"
	ActivityHandcycle       ActivityType = "Handcycle"
	ActivityHike            ActivityType = "Hike"
	ActivityIceSkate        ActivityType = "IceSkate"
	ActivityInlineSkate     ActivityType = "InlineSkate"
	ActivityKayaking        ActivityType = "Kayaking"
	ActivityKitesurf        ActivityType = "Kitesurf"
	ActivityNordicSki       ActivityType = "NordicSki"
	ActivityRide            ActivityType = "Ride"
	ActivityRockClimbing    ActivityType = "RockClimbing"
	ActivityRollerSki       ActivityType = "RollerSki"
	ActivityRowing          ActivityType = "Rowing"
	ActivityRun             ActivityType = "Run"
	ActivitySail            ActivityType = "Sail"
	ActivitySkateboard      ActivityType = "Skateboard"
	ActivitySnowboard       ActivityType = "Snowboard"
	ActivitySnowshoe        ActivityType = "Snowshoe"
	ActivitySoccer          ActivityType = "Soccer"
	ActivityStairStepper    ActivityType = "StairStepper"
	ActivityStandUpPaddling ActivityType = "StandUpPaddling"
	ActivitySurfing         ActivityType = "Surfing"
	ActivitySwim            ActivityType = "Swim"
	ActivityVelomobile      ActivityType = "Velomobile"
	ActivityVirtualRide     ActivityType = "VirtualRide"
	ActivityVirtualRun      ActivityType = "VirtualRun"
	ActivityWalk            ActivityType = "Walk"
	ActivityWeightTraining  ActivityType = "WeightTraining"
	ActivityWheelchair      ActivityType = "Wheelchair"
	ActivityWindsurf        ActivityType = "Windsurf"
	ActivityWorkout         ActivityType = "Workout"
	ActivityYoga            ActivityType = "Yoga"
)

// AllActivityTypes lists every known kind in a stable order.
var AllActivityTypes = []ActivityType{
	ActivityAlpineSki, ActivityBackcountrySki, ActivityCanoeing, ActivityCrossfit,
	ActivityEBikeRide, ActivityElliptical, ActivityGolf, ActivityHandcycle,
	ActivityHike, ActivityIceSkate, ActivityInlineSkate, ActivityKayaking,
	ActivityKitesurf, ActivityNordicSki, ActivityRide, ActivityRockClimbing,
	ActivityRollerSki, ActivityRowing, ActivityRun, ActivitySail,
	ActivitySkateboard, ActivitySnowboard, ActivitySnowshoe, ActivitySoccer,
	ActivityStairStepper, ActivityStandUpPaddling, ActivitySurfing, ActivitySwim,
	ActivityVelomobile, ActivityVirtualRide, ActivityVirtualRun, ActivityWalk,
	ActivityWeightTraining, ActivityWheelchair, ActivityWindsurf, ActivityWorkout,
	ActivityYoga,
}

var activityTypesByLower = func() map[string]ActivityType {
	m := make(map[string]ActivityType, len(AllActivityTypes))
	for _, t := range AllActivityTypes {
		m[strings.ToLower(string(t))] = t
	}
	return m
}()

// ParseActivityType resolves a case-insensitive activity type string.
// Unknown strings are rejected here, at the boundary, so downstream code can
// treat the enum as closed.
func ParseActivityType(s string) (ActivityType, error) {
	if t, ok := activityTypesByLower[strings.ToLower(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown activity type %q", s)
}

// activityIcons maps activity kinds to display icons; kinds without a good
// emoji map to the empty string and are skipped by callers.
var activityIcons = map[ActivityType]string{
	ActivityAlpineSki:      "⛷️",
	ActivityBackcountrySki: "⛷️",
	ActivityCanoeing:       "🛶",
	ActivityCrossfit:       "🏋",
	ActivityEBikeRide:      "🚴",
	ActivityGolf:           "🏌️",
	ActivityHike:           "🚶",
	ActivityIceSkate:       "⛸️",
	ActivityNordicSki:      "⛷️",
	ActivityRide:           "🚴",
	ActivityRollerSki:      "⛷️",
	ActivityRowing:         "🚣",
	ActivityRun:            "🏃",
	ActivitySkateboard:     "🛹",
	ActivitySnowboard:      "🏂",
	ActivitySoccer:         "⚽",
	ActivitySurfing:        "🏄",
	ActivitySwim:           "🏊",
	ActivityVirtualRide:    "🚴",
	ActivityVirtualRun:     "🏃",
	ActivityWalk:           "🚶",
	ActivityWeightTraining: "🏋",
	ActivityWheelchair:     "👨‍🦽",
	ActivityWorkout:        "🏋",
	ActivityYoga:           "🧘",
}

// Icon returns the display icon for t, or "" when none exists.
func (t ActivityType) Icon() string {
	return activityIcons[t]
}
