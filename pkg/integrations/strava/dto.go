package strava

import (
	"time"

	"github.com/pacelap/server/pkg/types"
)

// summaryActivity is the list-endpoint payload. It lacks calories, which only
// the detail endpoint reports.
type summaryActivity struct {
	ID      int64 `json:"id"`
	Athlete struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
	Name               string    `json:"name"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	UTCOffset          float64   `json:"utc_offset"`
	Manual             bool      `json:"manual"`
	Private            bool      `json:"private"`
	Flagged            bool      `json:"flagged"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`
	ElevHigh           float64   `json:"elev_high"`
	ElevLow            float64   `json:"elev_low"`
	WorkoutType        *int64    `json:"workout_type"`
	AverageTemp        int64     `json:"average_temp"`
	AverageWatts       float64   `json:"average_watts"`
	KiloJoules         float64   `json:"kilojoules"`
	DeviceWatts        bool      `json:"device_watts"`
	AverageCadence     float64   `json:"average_cadence"`
}

type detailedActivity struct {
	summaryActivity
	Calories float64 `json:"calories"`
}

// tokenAthlete is the athlete summary embedded in Strava's token response.
type tokenAthlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	ProfileMedium string `json:"profile_medium"`
	Profile       string `json:"profile"`
}

func (s *summaryActivity) toActivity(extendedInfo bool) *types.Activity {
	ext := extendedInfo
	return &types.Activity{
		ID:                 s.ID,
		AthleteID:          s.Athlete.ID,
		Name:               s.Name,
		Distance:           s.Distance,
		MovingTime:         s.MovingTime,
		ElapsedTime:        s.ElapsedTime,
		TotalElevationGain: s.TotalElevationGain,
		Type:               types.ActivityType(s.Type),
		StartDate:          s.StartDate,
		StartDateLocal:     s.StartDateLocal,
		Timezone:           s.Timezone,
		UTCOffset:          s.UTCOffset,
		Manual:             s.Manual,
		Private:            s.Private,
		Flagged:            s.Flagged,
		AverageSpeed:       s.AverageSpeed,
		MaxSpeed:           s.MaxSpeed,
		ElevHigh:           s.ElevHigh,
		ElevLow:            s.ElevLow,
		WorkoutType:        s.WorkoutType,
		AverageTemp:        s.AverageTemp,
		AverageWatts:       s.AverageWatts,
		KiloJoules:         s.KiloJoules,
		DeviceWatts:        s.DeviceWatts,
		AverageCadence:     s.AverageCadence,
		ExtendedInfo:       &ext,
	}
}

func (d *detailedActivity) toActivity() *types.Activity {
	a := d.summaryActivity.toActivity(true)
	a.KiloCalories = d.Calories
	return a
}
