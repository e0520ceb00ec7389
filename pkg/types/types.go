// Package types holds the domain model shared by every component: athletes,
// mirrored activities, challenges and their derived per-athlete statistics,
// and sync job records.
package types

import "time"

// Athlete is owned by the authentication flow. SessionID is the opaque
// user-facing token; it gets rotated when token refresh no longer helps and
// the athlete has to log in again.
type Athlete struct {
	ID             int64
	SessionID      string
	ExpiresAt      int64
	RefreshToken   string
	AccessToken    string
	Username       string
	AvatarSmallURL string
	AvatarURL      string
}

// Activity mirrors a single Strava activity locally. Records are immutable
// snapshots: the reconciler replaces them wholesale, never patches them.
//
// ExtendedInfo is tri-state:
//   - true:  fetched via the activity detail endpoint (authoritative)
//   - false: built from the list endpoint only (partial, eligible for upgrade)
//   - nil:   synced by an app version that predates the flag; never upgraded
type Activity struct {
	ID                 int64
	AthleteID          int64
	Name               string
	Distance           float64
	MovingTime         int64
	ElapsedTime        int64
	TotalElevationGain float64
	Type               ActivityType
	StartDate          time.Time
	StartDateLocal     time.Time
	Timezone           string
	UTCOffset          float64
	Manual             bool
	Private            bool
	Flagged            bool
	AverageSpeed       float64
	MaxSpeed           float64
	ElevHigh           float64
	ElevLow            float64
	WorkoutType        *int64
	AverageTemp        int64
	AverageWatts       float64
	KiloJoules         float64
	KiloCalories       float64
	DeviceWatts        bool
	AverageCadence     float64
	ExtendedInfo       *bool
}

// Summary projects the fields the aggregation pipeline carries around.
func (a *Activity) Summary() ActivitySummary {
	return ActivitySummary{
		ID:             a.ID,
		AthleteID:      a.AthleteID,
		Name:           a.Name,
		Distance:       a.Distance,
		MovingTime:     a.MovingTime,
		ElapsedTime:    a.ElapsedTime,
		Type:           a.Type,
		StartDate:      a.StartDate,
		StartDateLocal: a.StartDateLocal,
		Timezone:       a.Timezone,
		UTCOffset:      a.UTCOffset,
		KiloJoules:     a.KiloJoules,
		KiloCalories:   a.KiloCalories,
	}
}

// ActivitySummary is the slice of an Activity that backs challenge stats.
type ActivitySummary struct {
	ID             int64
	AthleteID      int64
	Name           string
	Distance       float64
	MovingTime     int64
	ElapsedTime    int64
	Type           ActivityType
	StartDate      time.Time
	StartDateLocal time.Time
	Timezone       string
	UTCOffset      float64
	KiloJoules     float64
	KiloCalories   float64
}

// AthleteChallengeStats is entirely derived from Activity + Challenge and is
// safe to treat as a cache; re-aggregation overwrites every derived field but
// must preserve membership.
type AthleteChallengeStats struct {
	AthleteID         int64
	Name              string
	AvatarURL         string
	ActivityCount     int
	TotalTime         time.Duration
	TotalMovingTime   time.Duration
	TotalKiloJoules   float64
	TotalKiloCalories float64
	TotalDistance     float64
	Activities        []ActivitySummary
}

// NewZeroStats is the membership placeholder written on join and kept by the
// aggregator for athletes with no matching activities.
func NewZeroStats(athleteID int64, name, avatarURL string) *AthleteChallengeStats {
	return &AthleteChallengeStats{
		AthleteID:  athleteID,
		Name:       name,
		AvatarURL:  avatarURL,
		Activities: []ActivitySummary{},
	}
}

// Challenge is a time-boxed competition. Exactly one of NumericGoal and
// TimeGoal is set, matching GoalType. AthletesStats is keyed by athlete ID,
// which makes join/leave single-field document updates.
type Challenge struct {
	ID            string
	Name          string
	From          time.Time
	To            time.Time
	GoalType      GoalType
	NumericGoal   *float64
	TimeGoal      *time.Duration
	ActivityTypes []ActivityType
	State         ChallengeState
	AthletesStats map[int64]*AthleteChallengeStats
}

// AllowsType reports whether t is in the challenge's allowed activity types.
func (c *Challenge) AllowsType(t ActivityType) bool {
	for _, at := range c.ActivityTypes {
		if at == t {
			return true
		}
	}
	return false
}

// AthleteIDs returns the current membership of the challenge.
func (c *Challenge) AthleteIDs() []int64 {
	ids := make([]int64, 0, len(c.AthletesStats))
	for id := range c.AthletesStats {
		ids = append(ids, id)
	}
	return ids
}

// Sync tracks one fan-out synchronization job. AthletesToSync is fixed at
// creation; SyncedAthletes grows monotonically (set semantics, duplicate
// completion reports are no-ops).
type Sync struct {
	ID             string
	AthletesToSync []int64
	SyncedAthletes []int64
	Timestamp      time.Time
}

// Complete reports whether every athlete in the job has reported done.
func (s *Sync) Complete() bool {
	if len(s.AthletesToSync) == 0 {
		return true
	}
	synced := make(map[int64]bool, len(s.SyncedAthletes))
	for _, id := range s.SyncedAthletes {
		synced[id] = true
	}
	for _, id := range s.AthletesToSync {
		if !synced[id] {
			return false
		}
	}
	return true
}

// WebhookSubscription is the stored Strava push subscription; inbound pushes
// are accepted only when they carry a known subscription ID.
type WebhookSubscription struct {
	ID int64
}
