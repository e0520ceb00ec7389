package types

import "time"

// ChallengeState is the derived lifecycle state of a challenge.
type ChallengeState string

const (
	ChallengeCurrent  ChallengeState = "Current"
	ChallengeUpcoming ChallengeState = "Upcoming"
	ChallengePast     ChallengeState = "Past"
)

// StateAt derives the lifecycle state of a [from, to] challenge at the given
// instant. The ±1 day buffer absorbs timezone skew between the server's UTC
// clock and athletes' local activity timestamps.
func StateAt(now, from, to time.Time) ChallengeState {
	if now.After(to.AddDate(0, 0, 1)) {
		return ChallengePast
	}
	if now.Before(from.AddDate(0, 0, -1)) {
		return ChallengeUpcoming
	}
	return ChallengeCurrent
}
