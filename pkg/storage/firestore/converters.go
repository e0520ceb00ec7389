package firestore

import (
	"strconv"
	"time"

	"github.com/pacelap/server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get bool from map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Helper to get bool as pointer, nil when the field is absent.
// Absence is meaningful for activities written before the extended_info flag.
func getBoolPtr(m map[string]interface{}, key string) *bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return &b
		}
	}
	return nil
}

// Helper to safely get int64 from map (Firestore numbers come back as int64,
// JSON round trips may yield float64)
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func getInt64Ptr(m map[string]interface{}, key string) *int64 {
	if _, ok := m[key]; !ok {
		return nil
	}
	n := getInt64(m, key)
	return &n
}

// Helper to safely get float64 from map
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	if _, ok := m[key]; !ok {
		return nil
	}
	f := getFloat(m, key)
	return &f
}

// Helper to safely get time from map
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getInt64Slice(m map[string]interface{}, key string) []int64 {
	v, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(v))
	for _, e := range v {
		switch n := e.(type) {
		case int64:
			out = append(out, n)
		case float64:
			out = append(out, int64(n))
		}
	}
	return out
}

func getStringSlice(m map[string]interface{}, key string) []string {
	v, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- Athlete Converters ---

func AthleteToFirestore(a *types.Athlete) map[string]interface{} {
	return map[string]interface{}{
		"id":               a.ID,
		"session_id":       a.SessionID,
		"expires_at":       a.ExpiresAt,
		"refresh_token":    a.RefreshToken,
		"access_token":     a.AccessToken,
		"username":         a.Username,
		"avatar_small_url": a.AvatarSmallURL,
		"avatar_url":       a.AvatarURL,
	}
}

func FirestoreToAthlete(m map[string]interface{}) *types.Athlete {
	return &types.Athlete{
		ID:             getInt64(m, "id"),
		SessionID:      getString(m, "session_id"),
		ExpiresAt:      getInt64(m, "expires_at"),
		RefreshToken:   getString(m, "refresh_token"),
		AccessToken:    getString(m, "access_token"),
		Username:       getString(m, "username"),
		AvatarSmallURL: getString(m, "avatar_small_url"),
		AvatarURL:      getString(m, "avatar_url"),
	}
}

// --- Activity Converters ---

func ActivityToFirestore(a *types.Activity) map[string]interface{} {
	m := map[string]interface{}{
		"id":                   a.ID,
		"athlete_id":           a.AthleteID,
		"name":                 a.Name,
		"distance":             a.Distance,
		"moving_time":          a.MovingTime,
		"elapsed_time":         a.ElapsedTime,
		"total_elevation_gain": a.TotalElevationGain,
		"type":                 string(a.Type),
		"start_date":           a.StartDate,
		"start_date_local":     a.StartDateLocal,
		"timezone":             a.Timezone,
		"utc_offset":           a.UTCOffset,
		"manual":               a.Manual,
		"private":              a.Private,
		"flagged":              a.Flagged,
		"average_speed":        a.AverageSpeed,
		"max_speed":            a.MaxSpeed,
		"elev_high":            a.ElevHigh,
		"elev_low":             a.ElevLow,
		"average_temp":         a.AverageTemp,
		"average_watts":        a.AverageWatts,
		"kilojoules":           a.KiloJoules,
		"kilocalories":         a.KiloCalories,
		"device_watts":         a.DeviceWatts,
		"average_cadence":      a.AverageCadence,
	}
	if a.WorkoutType != nil {
		m["workout_type"] = *a.WorkoutType
	}
	if a.ExtendedInfo != nil {
		m["extended_info"] = *a.ExtendedInfo
	}
	return m
}

func FirestoreToActivity(m map[string]interface{}) *types.Activity {
	return &types.Activity{
		ID:                 getInt64(m, "id"),
		AthleteID:          getInt64(m, "athlete_id"),
		Name:               getString(m, "name"),
		Distance:           getFloat(m, "distance"),
		MovingTime:         getInt64(m, "moving_time"),
		ElapsedTime:        getInt64(m, "elapsed_time"),
		TotalElevationGain: getFloat(m, "total_elevation_gain"),
		Type:               types.ActivityType(getString(m, "type")),
		StartDate:          getTime(m, "start_date"),
		StartDateLocal:     getTime(m, "start_date_local"),
		Timezone:           getString(m, "timezone"),
		UTCOffset:          getFloat(m, "utc_offset"),
		Manual:             getBool(m, "manual"),
		Private:            getBool(m, "private"),
		Flagged:            getBool(m, "flagged"),
		AverageSpeed:       getFloat(m, "average_speed"),
		MaxSpeed:           getFloat(m, "max_speed"),
		ElevHigh:           getFloat(m, "elev_high"),
		ElevLow:            getFloat(m, "elev_low"),
		WorkoutType:        getInt64Ptr(m, "workout_type"),
		AverageTemp:        getInt64(m, "average_temp"),
		AverageWatts:       getFloat(m, "average_watts"),
		KiloJoules:         getFloat(m, "kilojoules"),
		KiloCalories:       getFloat(m, "kilocalories"),
		DeviceWatts:        getBool(m, "device_watts"),
		AverageCadence:     getFloat(m, "average_cadence"),
		ExtendedInfo:       getBoolPtr(m, "extended_info"),
	}
}

// --- Challenge Converters ---

func activitySummaryToFirestore(s types.ActivitySummary) map[string]interface{} {
	return map[string]interface{}{
		"id":               s.ID,
		"athlete_id":       s.AthleteID,
		"name":             s.Name,
		"distance":         s.Distance,
		"moving_time":      s.MovingTime,
		"elapsed_time":     s.ElapsedTime,
		"type":             string(s.Type),
		"start_date":       s.StartDate,
		"start_date_local": s.StartDateLocal,
		"timezone":         s.Timezone,
		"utc_offset":       s.UTCOffset,
		"kilojoules":       s.KiloJoules,
		"kilocalories":     s.KiloCalories,
	}
}

func firestoreToActivitySummary(m map[string]interface{}) types.ActivitySummary {
	return types.ActivitySummary{
		ID:             getInt64(m, "id"),
		AthleteID:      getInt64(m, "athlete_id"),
		Name:           getString(m, "name"),
		Distance:       getFloat(m, "distance"),
		MovingTime:     getInt64(m, "moving_time"),
		ElapsedTime:    getInt64(m, "elapsed_time"),
		Type:           types.ActivityType(getString(m, "type")),
		StartDate:      getTime(m, "start_date"),
		StartDateLocal: getTime(m, "start_date_local"),
		Timezone:       getString(m, "timezone"),
		UTCOffset:      getFloat(m, "utc_offset"),
		KiloJoules:     getFloat(m, "kilojoules"),
		KiloCalories:   getFloat(m, "kilocalories"),
	}
}

// StatsToFirestore converts per-athlete stats. Exported because join writes a
// single stats entry via a field-path update rather than a full document set.
func StatsToFirestore(s *types.AthleteChallengeStats) map[string]interface{} {
	activities := make([]map[string]interface{}, len(s.Activities))
	for i, a := range s.Activities {
		activities[i] = activitySummaryToFirestore(a)
	}
	return map[string]interface{}{
		"athlete_id":         s.AthleteID,
		"name":               s.Name,
		"avatar_url":         s.AvatarURL,
		"activity_count":     int64(s.ActivityCount),
		"total_time":         int64(s.TotalTime / time.Second),
		"total_moving_time":  int64(s.TotalMovingTime / time.Second),
		"total_kilojoules":   s.TotalKiloJoules,
		"total_kilocalories": s.TotalKiloCalories,
		"total_distance":     s.TotalDistance,
		"activities":         activities,
	}
}

func firestoreToStats(m map[string]interface{}) *types.AthleteChallengeStats {
	var activities []types.ActivitySummary
	if raw, ok := m["activities"].([]interface{}); ok {
		activities = make([]types.ActivitySummary, 0, len(raw))
		for _, e := range raw {
			if em, ok := e.(map[string]interface{}); ok {
				activities = append(activities, firestoreToActivitySummary(em))
			}
		}
	}
	return &types.AthleteChallengeStats{
		AthleteID:         getInt64(m, "athlete_id"),
		Name:              getString(m, "name"),
		AvatarURL:         getString(m, "avatar_url"),
		ActivityCount:     int(getInt64(m, "activity_count")),
		TotalTime:         time.Duration(getInt64(m, "total_time")) * time.Second,
		TotalMovingTime:   time.Duration(getInt64(m, "total_moving_time")) * time.Second,
		TotalKiloJoules:   getFloat(m, "total_kilojoules"),
		TotalKiloCalories: getFloat(m, "total_kilocalories"),
		TotalDistance:     getFloat(m, "total_distance"),
		Activities:        activities,
	}
}

func ChallengeToFirestore(c *types.Challenge) map[string]interface{} {
	activityTypes := make([]string, len(c.ActivityTypes))
	for i, t := range c.ActivityTypes {
		activityTypes[i] = string(t)
	}

	stats := make(map[string]interface{}, len(c.AthletesStats))
	for id, s := range c.AthletesStats {
		stats[strconv.FormatInt(id, 10)] = StatsToFirestore(s)
	}

	m := map[string]interface{}{
		"id":             c.ID,
		"name":           c.Name,
		"from":           c.From,
		"to":             c.To,
		"goal_type":      string(c.GoalType),
		"activity_types": activityTypes,
		"state":          string(c.State),
		"athletes_stats": stats,
	}
	if c.NumericGoal != nil {
		m["numeric_goal"] = *c.NumericGoal
	}
	if c.TimeGoal != nil {
		m["time_goal"] = int64(*c.TimeGoal / time.Second)
	}
	return m
}

func FirestoreToChallenge(m map[string]interface{}) *types.Challenge {
	rawTypes := getStringSlice(m, "activity_types")
	activityTypes := make([]types.ActivityType, len(rawTypes))
	for i, s := range rawTypes {
		activityTypes[i] = types.ActivityType(s)
	}

	stats := map[int64]*types.AthleteChallengeStats{}
	if raw, ok := m["athletes_stats"].(map[string]interface{}); ok {
		for key, e := range raw {
			em, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			stats[id] = firestoreToStats(em)
		}
	}

	var timeGoal *time.Duration
	if v := getInt64Ptr(m, "time_goal"); v != nil {
		d := time.Duration(*v) * time.Second
		timeGoal = &d
	}

	return &types.Challenge{
		ID:            getString(m, "id"),
		Name:          getString(m, "name"),
		From:          getTime(m, "from"),
		To:            getTime(m, "to"),
		GoalType:      types.GoalType(getString(m, "goal_type")),
		NumericGoal:   getFloatPtr(m, "numeric_goal"),
		TimeGoal:      timeGoal,
		ActivityTypes: activityTypes,
		State:         types.ChallengeState(getString(m, "state")),
		AthletesStats: stats,
	}
}

// --- Sync Converters ---

func SyncToFirestore(s *types.Sync) map[string]interface{} {
	return map[string]interface{}{
		"id":               s.ID,
		"athletes_to_sync": s.AthletesToSync,
		"synced_athletes":  s.SyncedAthletes,
		"timestamp":        s.Timestamp,
	}
}

func FirestoreToSync(m map[string]interface{}) *types.Sync {
	return &types.Sync{
		ID:             getString(m, "id"),
		AthletesToSync: getInt64Slice(m, "athletes_to_sync"),
		SyncedAthletes: getInt64Slice(m, "synced_athletes"),
		Timestamp:      getTime(m, "timestamp"),
	}
}

// --- WebhookSubscription Converters ---

func SubscriptionToFirestore(s *types.WebhookSubscription) map[string]interface{} {
	return map[string]interface{}{
		"id": s.ID,
	}
}

func FirestoreToSubscription(m map[string]interface{}) *types.WebhookSubscription {
	return &types.WebhookSubscription{
		ID: getInt64(m, "id"),
	}
}
