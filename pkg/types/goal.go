package types

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GoalType selects the scoring dimension of a challenge. All goal-dependent
// behavior (score extraction, percent-of-goal, display formatting, which goal
// field is populated) hangs off this type so the five kinds cannot drift
// apart across aggregation, ranking and rendering.
type GoalType string

const (
	GoalTotalDistance     GoalType = "TotalDistance"
	GoalTotalTime         GoalType = "TotalTime"
	GoalTotalMovingTime   GoalType = "TotalMovingTime"
	GoalTotalKiloJoules   GoalType = "TotalKiloJoules"
	GoalTotalKiloCalories GoalType = "TotalKiloCalories"
)

// AllGoalTypes lists every supported goal type.
var AllGoalTypes = []GoalType{
	GoalTotalDistance, GoalTotalTime, GoalTotalMovingTime,
	GoalTotalKiloJoules, GoalTotalKiloCalories,
}

// usEnglish matches the client-facing number formatting of the web app.
var usEnglish = message.NewPrinter(language.AmericanEnglish)

// ParseGoalType resolves a case-insensitive goal type string.
func ParseGoalType(s string) (GoalType, error) {
	for _, t := range AllGoalTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown goal type %q", s)
}

// IsTimeGoal reports whether the challenge goal is a duration (TimeGoal)
// rather than a number (NumericGoal).
func (t GoalType) IsTimeGoal() bool {
	return t == GoalTotalTime || t == GoalTotalMovingTime
}

// JSONName is the lowercase-first spelling the web client expects.
func (t GoalType) JSONName() string {
	s := string(t)
	return strings.ToLower(s[:1]) + s[1:]
}

// Score extracts the ranked quantity from an athlete's stats. Time goals
// score in seconds. An unknown goal type is a programming error.
func (t GoalType) Score(st *AthleteChallengeStats) float64 {
	switch t {
	case GoalTotalDistance:
		return st.TotalDistance
	case GoalTotalKiloJoules:
		return st.TotalKiloJoules
	case GoalTotalKiloCalories:
		return st.TotalKiloCalories
	case GoalTotalTime:
		return st.TotalTime.Seconds()
	case GoalTotalMovingTime:
		return st.TotalMovingTime.Seconds()
	}
	panic(fmt.Sprintf("unsupported goal type %q", t))
}

// goalValue returns the challenge goal in the same unit Score uses.
func (t GoalType) goalValue(c *Challenge) float64 {
	if t.IsTimeGoal() {
		if c.TimeGoal == nil {
			panic(fmt.Sprintf("challenge %s: goal type %s without a time goal", c.ID, t))
		}
		return c.TimeGoal.Seconds()
	}
	if c.NumericGoal == nil {
		panic(fmt.Sprintf("challenge %s: goal type %s without a numeric goal", c.ID, t))
	}
	return *c.NumericGoal
}

// PercentOfGoal is the rounded share of the challenge goal an athlete has
// covered so far.
func (t GoalType) PercentOfGoal(c *Challenge, st *AthleteChallengeStats) int {
	return int(math.Round(t.Score(st) / t.goalValue(c) * 100.0))
}

// ScoreTitle is the leaderboard column header for this goal type.
func (t GoalType) ScoreTitle() string {
	switch t {
	case GoalTotalDistance:
		return "Distance (km)"
	case GoalTotalKiloJoules:
		return "Energy (kJ)"
	case GoalTotalKiloCalories:
		return "Energy (Cal)"
	case GoalTotalTime:
		return "Time"
	case GoalTotalMovingTime:
		return "Moving Time"
	}
	panic(fmt.Sprintf("unsupported goal type %q", t))
}

// DisplayGoal renders the challenge goal for challenge listings, e.g.
// "100km", "5000kJ", "10:00:00".
func (t GoalType) DisplayGoal(c *Challenge) string {
	switch t {
	case GoalTotalDistance:
		return usEnglish.Sprintf("%dkm", int(t.goalValue(c)/1000.0))
	case GoalTotalKiloJoules:
		return usEnglish.Sprintf("%dkJ", int(t.goalValue(c)))
	case GoalTotalKiloCalories:
		return usEnglish.Sprintf("%dCal", int(t.goalValue(c)))
	case GoalTotalTime, GoalTotalMovingTime:
		return FormatDuration(*c.TimeGoal)
	}
	panic(fmt.Sprintf("unsupported goal type %q", t))
}

// RawGoal renders the goal in its stored unit for edit forms.
func (t GoalType) RawGoal(c *Challenge) string {
	if t.IsTimeGoal() {
		return FormatDuration(*c.TimeGoal)
	}
	return usEnglish.Sprintf("%d", int(t.goalValue(c)))
}

// FormatScore renders an athlete's total for the leaderboard: kilometers with
// two decimals, kilojoules with one, calories as a whole number, durations as
// hh:mm:ss.
func (t GoalType) FormatScore(st *AthleteChallengeStats) string {
	switch t {
	case GoalTotalDistance:
		return usEnglish.Sprintf("%.2f", st.TotalDistance/1000.0)
	case GoalTotalKiloJoules:
		return usEnglish.Sprintf("%.1f", st.TotalKiloJoules)
	case GoalTotalKiloCalories:
		return usEnglish.Sprintf("%d", int(st.TotalKiloCalories))
	case GoalTotalTime:
		return FormatDuration(st.TotalTime)
	case GoalTotalMovingTime:
		return FormatDuration(st.TotalMovingTime)
	}
	panic(fmt.Sprintf("unsupported goal type %q", t))
}

// FormatDuration renders d as [d.]hh:mm:ss, the format the web client's time
// inputs produce and parse.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%d.%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// ParseTimeGoal parses [d.]hh:mm:ss into a duration.
func ParseTimeGoal(s string) (time.Duration, error) {
	var days int64
	rest := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if _, err := fmt.Sscanf(s[:i], "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid time goal %q", s)
		}
		rest = s[i+1:]
	}
	var hours, minutes, seconds int64
	if _, err := fmt.Sscanf(rest, "%d:%d:%d", &hours, &minutes, &seconds); err != nil {
		return 0, fmt.Errorf("invalid time goal %q", s)
	}
	if minutes > 59 || seconds > 59 || minutes < 0 || seconds < 0 || hours < 0 {
		return 0, fmt.Errorf("invalid time goal %q", s)
	}
	total := days*86400 + hours*3600 + minutes*60 + seconds
	return time.Duration(total) * time.Second, nil
}
