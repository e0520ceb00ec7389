package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numericChallenge(goalType GoalType, goal float64) *Challenge {
	return &Challenge{GoalType: goalType, NumericGoal: &goal}
}

func timeChallenge(goalType GoalType, goal time.Duration) *Challenge {
	return &Challenge{GoalType: goalType, TimeGoal: &goal}
}

func TestScorePicksTheRightTotal(t *testing.T) {
	st := &AthleteChallengeStats{
		TotalTime:         10 * time.Hour,
		TotalMovingTime:   8 * time.Hour,
		TotalKiloJoules:   1500,
		TotalKiloCalories: 2000,
		TotalDistance:     50000,
	}

	assert.Equal(t, 50000.0, GoalTotalDistance.Score(st))
	assert.Equal(t, (10 * time.Hour).Seconds(), GoalTotalTime.Score(st))
	assert.Equal(t, (8 * time.Hour).Seconds(), GoalTotalMovingTime.Score(st))
	assert.Equal(t, 1500.0, GoalTotalKiloJoules.Score(st))
	assert.Equal(t, 2000.0, GoalTotalKiloCalories.Score(st))
}

func TestPercentOfGoal(t *testing.T) {
	st := &AthleteChallengeStats{TotalDistance: 50000}
	c := numericChallenge(GoalTotalDistance, 100000)
	assert.Equal(t, 50, GoalTotalDistance.PercentOfGoal(c, st))

	// Percent rounds to nearest and may exceed 100.
	st = &AthleteChallengeStats{TotalDistance: 150000}
	assert.Equal(t, 150, GoalTotalDistance.PercentOfGoal(c, st))

	st = &AthleteChallengeStats{TotalTime: 5 * time.Hour}
	tc := timeChallenge(GoalTotalTime, 10*time.Hour)
	assert.Equal(t, 50, GoalTotalTime.PercentOfGoal(tc, st))
}

func TestParseGoalType(t *testing.T) {
	got, err := ParseGoalType("totalDistance")
	require.NoError(t, err)
	assert.Equal(t, GoalTotalDistance, got)

	_, err = ParseGoalType("verticalMeters")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "02:05:09", FormatDuration(2*time.Hour+5*time.Minute+9*time.Second))
	assert.Equal(t, "1.02:00:00", FormatDuration(26*time.Hour))
	assert.Equal(t, "00:00:00", FormatDuration(0))
}

func TestParseTimeGoal(t *testing.T) {
	d, err := ParseTimeGoal("26:00:00")
	require.NoError(t, err)
	assert.Equal(t, 26*time.Hour, d)

	d, err = ParseTimeGoal("00:30:15")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute+15*time.Second, d)

	_, err = ParseTimeGoal("half an hour")
	assert.Error(t, err)
}

func TestFormatScore(t *testing.T) {
	st := &AthleteChallengeStats{
		TotalDistance:     50000,
		TotalKiloJoules:   1234.56,
		TotalKiloCalories: 1999.4,
		TotalMovingTime:   90 * time.Minute,
	}

	assert.Equal(t, "50.00", GoalTotalDistance.FormatScore(st))
	assert.Equal(t, "1,234.6", GoalTotalKiloJoules.FormatScore(st))
	assert.Equal(t, "1,999", GoalTotalKiloCalories.FormatScore(st))
	assert.Equal(t, "01:30:00", GoalTotalMovingTime.FormatScore(st))
}
