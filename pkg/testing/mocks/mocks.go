// Package mocks provides hand-rolled test doubles for the persistence and
// messaging interfaces. Set only the funcs a test cares about; everything
// else has a harmless default.
package mocks

import (
	"context"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/types"
)

// --- Mock Database ---

type MockDatabase struct {
	GetAthleteFunc              func(ctx context.Context, id int64) (*types.Athlete, error)
	GetAthleteBySessionFunc     func(ctx context.Context, sessionID string) (*types.Athlete, error)
	ListAthletesFunc            func(ctx context.Context) ([]*types.Athlete, error)
	ListAthletesByIDsFunc       func(ctx context.Context, ids []int64) ([]*types.Athlete, error)
	UpsertAthleteFunc           func(ctx context.Context, athlete *types.Athlete) (bool, error)
	UpdateAthleteTokensFunc     func(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt int64) error
	RotateAthleteSessionFunc    func(ctx context.Context, id int64, sessionID string) error

	UpsertActivityFunc                   func(ctx context.Context, activity *types.Activity) error
	DeleteActivityFunc                   func(ctx context.Context, id int64) error
	DeleteActivitiesFunc                 func(ctx context.Context, ids []int64) error
	ListAthleteActivitiesByStartDateFunc func(ctx context.Context, athleteID int64, from, to time.Time) ([]*types.Activity, error)
	ListActivitiesByLocalStartFunc       func(ctx context.Context, from, before time.Time) ([]*types.Activity, error)

	GetChallengeFunc          func(ctx context.Context, id string) (*types.Challenge, error)
	ListChallengesFunc        func(ctx context.Context) ([]*types.Challenge, error)
	InsertChallengeFunc       func(ctx context.Context, challenge *types.Challenge) error
	UpdateChallengeFunc       func(ctx context.Context, challenge *types.Challenge) error
	DeleteChallengeFunc       func(ctx context.Context, id string) error
	SetChallengeStatsFunc     func(ctx context.Context, id string, stats map[int64]*types.AthleteChallengeStats) error
	JoinChallengeFunc         func(ctx context.Context, id string, stats *types.AthleteChallengeStats) error
	LeaveChallengeFunc        func(ctx context.Context, id string, athleteID int64) error
	UpdateChallengeStatesFunc func(ctx context.Context, ids []string, state types.ChallengeState) error

	CreateSyncFunc       func(ctx context.Context, sync *types.Sync) error
	GetSyncFunc          func(ctx context.Context, id string) (*types.Sync, error)
	AddSyncedAthleteFunc func(ctx context.Context, id string, athleteID int64) error
	DeleteSyncFunc       func(ctx context.Context, id string) error

	HasSubscriptionFunc func(ctx context.Context, id int64) (bool, error)
}

func (m *MockDatabase) GetAthlete(ctx context.Context, id int64) (*types.Athlete, error) {
	if m.GetAthleteFunc != nil {
		return m.GetAthleteFunc(ctx, id)
	}
	return nil, &shared.ErrNotFound{Collection: shared.CollectionAthletes, Key: "mock"}
}

func (m *MockDatabase) GetAthleteBySession(ctx context.Context, sessionID string) (*types.Athlete, error) {
	if m.GetAthleteBySessionFunc != nil {
		return m.GetAthleteBySessionFunc(ctx, sessionID)
	}
	return nil, &shared.ErrNotFound{Collection: shared.CollectionAthletes, Key: "mock"}
}

func (m *MockDatabase) ListAthletes(ctx context.Context) ([]*types.Athlete, error) {
	if m.ListAthletesFunc != nil {
		return m.ListAthletesFunc(ctx)
	}
	return nil, nil
}

func (m *MockDatabase) ListAthletesByIDs(ctx context.Context, ids []int64) ([]*types.Athlete, error) {
	if m.ListAthletesByIDsFunc != nil {
		return m.ListAthletesByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertAthlete(ctx context.Context, athlete *types.Athlete) (bool, error) {
	if m.UpsertAthleteFunc != nil {
		return m.UpsertAthleteFunc(ctx, athlete)
	}
	return false, nil
}

func (m *MockDatabase) UpdateAthleteTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt int64) error {
	if m.UpdateAthleteTokensFunc != nil {
		return m.UpdateAthleteTokensFunc(ctx, id, accessToken, refreshToken, expiresAt)
	}
	return nil
}

func (m *MockDatabase) RotateAthleteSession(ctx context.Context, id int64, sessionID string) error {
	if m.RotateAthleteSessionFunc != nil {
		return m.RotateAthleteSessionFunc(ctx, id, sessionID)
	}
	return nil
}

func (m *MockDatabase) UpsertActivity(ctx context.Context, activity *types.Activity) error {
	if m.UpsertActivityFunc != nil {
		return m.UpsertActivityFunc(ctx, activity)
	}
	return nil
}

func (m *MockDatabase) DeleteActivity(ctx context.Context, id int64) error {
	if m.DeleteActivityFunc != nil {
		return m.DeleteActivityFunc(ctx, id)
	}
	return nil
}

func (m *MockDatabase) DeleteActivities(ctx context.Context, ids []int64) error {
	if m.DeleteActivitiesFunc != nil {
		return m.DeleteActivitiesFunc(ctx, ids)
	}
	return nil
}

func (m *MockDatabase) ListAthleteActivitiesByStartDate(ctx context.Context, athleteID int64, from, to time.Time) ([]*types.Activity, error) {
	if m.ListAthleteActivitiesByStartDateFunc != nil {
		return m.ListAthleteActivitiesByStartDateFunc(ctx, athleteID, from, to)
	}
	return nil, nil
}

func (m *MockDatabase) ListActivitiesByLocalStart(ctx context.Context, from, before time.Time) ([]*types.Activity, error) {
	if m.ListActivitiesByLocalStartFunc != nil {
		return m.ListActivitiesByLocalStartFunc(ctx, from, before)
	}
	return nil, nil
}

func (m *MockDatabase) GetChallenge(ctx context.Context, id string) (*types.Challenge, error) {
	if m.GetChallengeFunc != nil {
		return m.GetChallengeFunc(ctx, id)
	}
	return nil, &shared.ErrNotFound{Collection: shared.CollectionChallenges, Key: id}
}

func (m *MockDatabase) ListChallenges(ctx context.Context) ([]*types.Challenge, error) {
	if m.ListChallengesFunc != nil {
		return m.ListChallengesFunc(ctx)
	}
	return nil, nil
}

func (m *MockDatabase) InsertChallenge(ctx context.Context, challenge *types.Challenge) error {
	if m.InsertChallengeFunc != nil {
		return m.InsertChallengeFunc(ctx, challenge)
	}
	return nil
}

func (m *MockDatabase) UpdateChallenge(ctx context.Context, challenge *types.Challenge) error {
	if m.UpdateChallengeFunc != nil {
		return m.UpdateChallengeFunc(ctx, challenge)
	}
	return nil
}

func (m *MockDatabase) DeleteChallenge(ctx context.Context, id string) error {
	if m.DeleteChallengeFunc != nil {
		return m.DeleteChallengeFunc(ctx, id)
	}
	return nil
}

func (m *MockDatabase) SetChallengeStats(ctx context.Context, id string, stats map[int64]*types.AthleteChallengeStats) error {
	if m.SetChallengeStatsFunc != nil {
		return m.SetChallengeStatsFunc(ctx, id, stats)
	}
	return nil
}

func (m *MockDatabase) JoinChallenge(ctx context.Context, id string, stats *types.AthleteChallengeStats) error {
	if m.JoinChallengeFunc != nil {
		return m.JoinChallengeFunc(ctx, id, stats)
	}
	return nil
}

func (m *MockDatabase) LeaveChallenge(ctx context.Context, id string, athleteID int64) error {
	if m.LeaveChallengeFunc != nil {
		return m.LeaveChallengeFunc(ctx, id, athleteID)
	}
	return nil
}

func (m *MockDatabase) UpdateChallengeStates(ctx context.Context, ids []string, state types.ChallengeState) error {
	if m.UpdateChallengeStatesFunc != nil {
		return m.UpdateChallengeStatesFunc(ctx, ids, state)
	}
	return nil
}

func (m *MockDatabase) CreateSync(ctx context.Context, sync *types.Sync) error {
	if m.CreateSyncFunc != nil {
		return m.CreateSyncFunc(ctx, sync)
	}
	return nil
}

func (m *MockDatabase) GetSync(ctx context.Context, id string) (*types.Sync, error) {
	if m.GetSyncFunc != nil {
		return m.GetSyncFunc(ctx, id)
	}
	return nil, &shared.ErrNotFound{Collection: shared.CollectionSyncs, Key: id}
}

func (m *MockDatabase) AddSyncedAthlete(ctx context.Context, id string, athleteID int64) error {
	if m.AddSyncedAthleteFunc != nil {
		return m.AddSyncedAthleteFunc(ctx, id, athleteID)
	}
	return nil
}

func (m *MockDatabase) DeleteSync(ctx context.Context, id string) error {
	if m.DeleteSyncFunc != nil {
		return m.DeleteSyncFunc(ctx, id)
	}
	return nil
}

func (m *MockDatabase) HasSubscription(ctx context.Context, id int64) (bool, error) {
	if m.HasSubscriptionFunc != nil {
		return m.HasSubscriptionFunc(ctx, id)
	}
	return false, nil
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)

	// Published records every event when no func override is set.
	Published []PublishedEvent
}

type PublishedEvent struct {
	Topic string
	Event event.Event
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	m.Published = append(m.Published, PublishedEvent{Topic: topic, Event: e})
	return "msg-id", nil
}
