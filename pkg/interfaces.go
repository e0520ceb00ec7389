package shared

import (
	"context"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/pacelap/server/pkg/types"
)

// --- Persistence Interfaces ---

// Database exposes the document store's collection-level primitives. All
// cross-request coordination relies on the store's per-document atomicity
// (AddSyncedAthlete, JoinChallenge, LeaveChallenge), never on process locks.
type Database interface {
	// Athletes
	GetAthlete(ctx context.Context, id int64) (*types.Athlete, error)
	GetAthleteBySession(ctx context.Context, sessionID string) (*types.Athlete, error)
	ListAthletes(ctx context.Context) ([]*types.Athlete, error)
	ListAthletesByIDs(ctx context.Context, ids []int64) ([]*types.Athlete, error)
	// UpsertAthlete reports whether the record already existed.
	UpsertAthlete(ctx context.Context, athlete *types.Athlete) (existed bool, err error)
	UpdateAthleteTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt int64) error
	RotateAthleteSession(ctx context.Context, id int64, sessionID string) error

	// Activities
	UpsertActivity(ctx context.Context, activity *types.Activity) error
	DeleteActivity(ctx context.Context, id int64) error
	DeleteActivities(ctx context.Context, ids []int64) error
	// ListAthleteActivitiesByStartDate returns the athlete's stored activities
	// with StartDate in [from, to] inclusive.
	ListAthleteActivitiesByStartDate(ctx context.Context, athleteID int64, from, to time.Time) ([]*types.Activity, error)
	// ListActivitiesByLocalStart returns all stored activities with
	// StartDateLocal in [from, before).
	ListActivitiesByLocalStart(ctx context.Context, from, before time.Time) ([]*types.Activity, error)

	// Challenges
	GetChallenge(ctx context.Context, id string) (*types.Challenge, error)
	ListChallenges(ctx context.Context) ([]*types.Challenge, error)
	InsertChallenge(ctx context.Context, challenge *types.Challenge) error
	UpdateChallenge(ctx context.Context, challenge *types.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
	// SetChallengeStats replaces the whole derived stats map.
	SetChallengeStats(ctx context.Context, id string, stats map[int64]*types.AthleteChallengeStats) error
	// JoinChallenge writes a stats row only when the athlete has none yet.
	JoinChallenge(ctx context.Context, id string, stats *types.AthleteChallengeStats) error
	LeaveChallenge(ctx context.Context, id string, athleteID int64) error
	UpdateChallengeStates(ctx context.Context, ids []string, state types.ChallengeState) error

	// Sync jobs
	CreateSync(ctx context.Context, sync *types.Sync) error
	GetSync(ctx context.Context, id string) (*types.Sync, error)
	// AddSyncedAthlete appends with set semantics (idempotent).
	AddSyncedAthlete(ctx context.Context, id string, athleteID int64) error
	DeleteSync(ctx context.Context, id string) error

	// Webhook subscriptions
	HasSubscription(ctx context.Context, id int64) (bool, error)
}

// ErrNotFound is returned by Get* methods when no document matches.
type ErrNotFound struct {
	Collection string
	Key        string
}

func (e *ErrNotFound) Error() string {
	return e.Collection + ": not found: " + e.Key
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}
