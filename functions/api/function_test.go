package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/coordinator"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/testing/mocks"
	"github.com/pacelap/server/pkg/types"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(db *mocks.MockDatabase, pub *mocks.MockPublisher) *Handler {
	svc := &bootstrap.Service{
		DB:  db,
		Pub: pub,
		Config: &bootstrap.Config{
			OwnerAthleteID:  1,
			AllowedAthletes: map[int64]bool{1: true, 7: true},
		},
	}
	events := infrapubsub.NewDispatcher(pub)
	return &Handler{
		Service: svc,
		Events:  events,
		Coordinator: &coordinator.Coordinator{
			DB:     db,
			Events: events,
			Logger: slog.Default(),
			Now:    func() time.Time { return testNow },
		},
		Exchange: func(ctx context.Context, code string) (*types.Athlete, error) {
			return nil, fmt.Errorf("unexpected exchange of code %q", code)
		},
		Now: func() time.Time { return testNow },
	}
}

// sessionDB authenticates "sess-<id>" for the given athletes.
func sessionDB(athletes ...*types.Athlete) *mocks.MockDatabase {
	return &mocks.MockDatabase{
		GetAthleteBySessionFunc: func(ctx context.Context, sessionID string) (*types.Athlete, error) {
			for _, a := range athletes {
				if sessionID == fmt.Sprintf("sess-%d", a.ID) {
					return a, nil
				}
			}
			return nil, &shared.ErrNotFound{Collection: shared.CollectionAthletes, Key: sessionID}
		},
	}
}

func doRequest(h *Handler, method, target, session string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if session != "" {
		req.Header.Set("X-Custom-Authorization", "Bearer "+session)
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func floatPtr(f float64) *float64 { return &f }

func testChallenge(id string, from, to time.Time) *types.Challenge {
	return &types.Challenge{
		ID:            id,
		Name:          "Challenge " + id,
		From:          from,
		To:            to,
		GoalType:      types.GoalTotalDistance,
		NumericGoal:   floatPtr(100_000),
		ActivityTypes: []types.ActivityType{types.ActivityRun},
		AthletesStats: map[int64]*types.AthleteChallengeStats{},
	}
}

func TestLoginRequiresCode(t *testing.T) {
	h := newTestHandler(&mocks.MockDatabase{}, &mocks.MockPublisher{})
	w := doRequest(h, http.MethodPost, "/login", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRejectsUnknownAthlete(t *testing.T) {
	h := newTestHandler(&mocks.MockDatabase{}, &mocks.MockPublisher{})
	h.Exchange = func(ctx context.Context, code string) (*types.Athlete, error) {
		return &types.Athlete{ID: 999, Username: "stranger"}, nil
	}
	w := doRequest(h, http.MethodPost, "/login", "", `{"code":"abc"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFirstTimeStartsBackgroundSync(t *testing.T) {
	published := make(chan string, 4)
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			published <- topic
			return "msg-id", nil
		},
	}
	var rotated string
	db := &mocks.MockDatabase{
		UpsertAthleteFunc: func(ctx context.Context, athlete *types.Athlete) (bool, error) {
			return false, nil
		},
		RotateAthleteSessionFunc: func(ctx context.Context, id int64, sessionID string) error {
			rotated = sessionID
			return nil
		},
	}
	h := newTestHandler(db, pub)
	h.Exchange = func(ctx context.Context, code string) (*types.Athlete, error) {
		require.Equal(t, "abc", code)
		return &types.Athlete{ID: 7, Username: "runner"}, nil
	}

	w := doRequest(h, http.MethodPost, "/login", "", `{"code":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.AthleteID)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, rotated, resp.SessionID)
	assert.False(t, resp.IsAdmin)

	select {
	case topic := <-published:
		assert.Equal(t, shared.TopicSyncAthlete, topic)
	case <-time.After(time.Second):
		t.Fatal("background sync never emitted a sync event")
	}
}

func TestLoginReturningAthleteKeepsSession(t *testing.T) {
	db := &mocks.MockDatabase{
		UpsertAthleteFunc: func(ctx context.Context, athlete *types.Athlete) (bool, error) {
			return true, nil
		},
		GetAthleteFunc: func(ctx context.Context, id int64) (*types.Athlete, error) {
			return &types.Athlete{ID: id, SessionID: "existing-session", Username: "runner"}, nil
		},
		RotateAthleteSessionFunc: func(ctx context.Context, id int64, sessionID string) error {
			t.Fatal("returning athlete must not get a fresh session")
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	h := newTestHandler(db, pub)
	h.Exchange = func(ctx context.Context, code string) (*types.Athlete, error) {
		return &types.Athlete{ID: 1, Username: "owner"}, nil
	}

	w := doRequest(h, http.MethodPost, "/login", "", `{"code":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "existing-session", resp.SessionID)
	assert.True(t, resp.IsAdmin)
	assert.Empty(t, pub.Published, "no sync on repeat login")
}

func TestListChallengesRequiresSession(t *testing.T) {
	h := newTestHandler(&mocks.MockDatabase{}, &mocks.MockPublisher{})
	w := doRequest(h, http.MethodGet, "/challenges/", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListChallengesGroupsByLiveState(t *testing.T) {
	day := 24 * time.Hour
	past := testChallenge("past", testNow.Add(-30*day), testNow.Add(-10*day))
	current := testChallenge("current", testNow.Add(-5*day), testNow.Add(5*day))
	upcoming := testChallenge("upcoming", testNow.Add(10*day), testNow.Add(20*day))
	// Stored state is stale on purpose; the listing must reclassify.
	past.State = types.ChallengeCurrent

	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.ListChallengesFunc = func(ctx context.Context) ([]*types.Challenge, error) {
		return []*types.Challenge{upcoming, past, current}, nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	w := doRequest(h, http.MethodGet, "/challenges/", "sess-7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp challengesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Current, 1)
	require.Len(t, resp.Upcoming, 1)
	require.Len(t, resp.Past, 1)
	assert.Equal(t, "current", resp.Current[0].ID)
	assert.Equal(t, "upcoming", resp.Upcoming[0].ID)
	assert.Equal(t, "past", resp.Past[0].ID)
	assert.Equal(t, "100km", resp.Current[0].Goal)
}

func TestGetChallengeLeaderboard(t *testing.T) {
	c := testChallenge("c1", testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour))
	c.AthletesStats = map[int64]*types.AthleteChallengeStats{
		7: {AthleteID: 7, Name: "runner", TotalDistance: 42_000},
		1: {AthleteID: 1, Name: "owner", TotalDistance: 50_000},
	}
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.GetChallengeFunc = func(ctx context.Context, id string) (*types.Challenge, error) {
		require.Equal(t, "c1", id)
		return c, nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	w := doRequest(h, http.MethodGet, "/challenges/c1", "sess-7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp challengeDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Distance (km)", resp.ScoreTitle)
	require.Len(t, resp.Leaderboard, 2)
	assert.Equal(t, 1, resp.Leaderboard[0].Rank)
	assert.Equal(t, int64(1), resp.Leaderboard[0].AthleteID)
	assert.Equal(t, "50.00", resp.Leaderboard[0].Score)
	assert.Equal(t, 50, resp.Leaderboard[0].Percent)
	assert.False(t, resp.Leaderboard[0].IsMe)
	assert.True(t, resp.Leaderboard[1].IsMe)
	assert.True(t, resp.Joined)
}

func TestCreateChallengeRequiresAdmin(t *testing.T) {
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.InsertChallengeFunc = func(ctx context.Context, c *types.Challenge) error {
		t.Fatal("non-admin must not create challenges")
		return nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	payload := `{"name":"June","from":"2024-06-01T00:00:00Z","to":"2024-06-30T00:00:00Z","goalType":"TotalDistance","goal":"100000","activityTypes":["Run"]}`
	w := doRequest(h, http.MethodPost, "/challenges/", "sess-7", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateChallenge(t *testing.T) {
	var inserted *types.Challenge
	db := sessionDB(&types.Athlete{ID: 1, Username: "owner"})
	db.InsertChallengeFunc = func(ctx context.Context, c *types.Challenge) error {
		inserted = c
		return nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	payload := `{"name":"June","from":"2024-06-01T00:00:00Z","to":"2024-06-30T00:00:00Z","goalType":"TotalDistance","goal":"100000","activityTypes":["Run"]}`
	w := doRequest(h, http.MethodPost, "/challenges/", "sess-1", payload)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, inserted)
	assert.NotEmpty(t, inserted.ID)
	assert.Equal(t, "June", inserted.Name)
	assert.Equal(t, types.ChallengeCurrent, inserted.State)
}

func TestCreateChallengeRejectsBadPayload(t *testing.T) {
	db := sessionDB(&types.Athlete{ID: 1, Username: "owner"})
	h := newTestHandler(db, &mocks.MockPublisher{})

	payload := `{"name":"","from":"2024-06-01T00:00:00Z","to":"2024-06-30T00:00:00Z","goalType":"TotalDistance","goal":"100000","activityTypes":["Run"]}`
	w := doRequest(h, http.MethodPost, "/challenges/", "sess-1", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditChallengeKeepsMembership(t *testing.T) {
	existing := testChallenge("c1", testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour))
	existing.AthletesStats = map[int64]*types.AthleteChallengeStats{
		7: {AthleteID: 7, Name: "runner", TotalDistance: 42_000},
	}
	var updated *types.Challenge
	db := sessionDB(&types.Athlete{ID: 1, Username: "owner"})
	db.GetChallengeFunc = func(ctx context.Context, id string) (*types.Challenge, error) {
		return existing, nil
	}
	db.UpdateChallengeFunc = func(ctx context.Context, c *types.Challenge) error {
		updated = c
		return nil
	}
	pub := &mocks.MockPublisher{}
	h := newTestHandler(db, pub)

	payload := `{"name":"Renamed","from":"2024-06-01T00:00:00Z","to":"2024-06-30T00:00:00Z","goalType":"TotalDistance","goal":"200000","activityTypes":["Run"]}`
	w := doRequest(h, http.MethodPut, "/challenges/c1", "sess-1", payload)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, updated)
	assert.Equal(t, "c1", updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	require.Contains(t, updated.AthletesStats, int64(7))

	// New rules mean old scores are wrong; a recalculation must follow.
	require.Len(t, pub.Published, 1)
	assert.Equal(t, shared.TopicRecalculate, pub.Published[0].Topic)
}

func TestJoinChallengeEmitsRecalculate(t *testing.T) {
	c := testChallenge("c1", testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour))
	var joinedStats *types.AthleteChallengeStats
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner", AvatarURL: "https://img/7"})
	db.GetChallengeFunc = func(ctx context.Context, id string) (*types.Challenge, error) {
		return c, nil
	}
	db.JoinChallengeFunc = func(ctx context.Context, id string, stats *types.AthleteChallengeStats) error {
		joinedStats = stats
		return nil
	}
	pub := &mocks.MockPublisher{}
	h := newTestHandler(db, pub)

	w := doRequest(h, http.MethodPost, "/challenges/c1/join", "sess-7", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	require.NotNil(t, joinedStats)
	assert.Equal(t, int64(7), joinedStats.AthleteID)
	assert.Equal(t, "runner", joinedStats.Name)
	assert.Zero(t, joinedStats.TotalDistance)

	require.Len(t, pub.Published, 1)
	assert.Equal(t, shared.TopicRecalculate, pub.Published[0].Topic)
	ev := types.SyncAthleteEvent{}
	require.NoError(t, json.Unmarshal(pub.Published[0].Event.Data(), &ev))
	assert.Equal(t, shared.AlwaysRecalculate, ev.SyncID)
}

func TestAthleteBreakdownUnknownMember(t *testing.T) {
	c := testChallenge("c1", testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour))
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.GetChallengeFunc = func(ctx context.Context, id string) (*types.Challenge, error) {
		return c, nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	w := doRequest(h, http.MethodGet, "/challenges/c1/athletes/42", "sess-7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAthleteBreakdownScoresActivities(t *testing.T) {
	c := testChallenge("c1", testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour))
	c.AthletesStats = map[int64]*types.AthleteChallengeStats{
		7: {
			AthleteID:     7,
			Name:          "runner",
			TotalDistance: 15_000,
			Activities: []types.ActivitySummary{
				{ID: 1, Name: "Morning Run", Type: types.ActivityRun, Distance: 5_000,
					MovingTime: 1800, KiloCalories: 320, StartDateLocal: testNow.Add(-6 * time.Hour)},
				{ID: 2, Name: "Evening Run", Type: types.ActivityRun, Distance: 10_000,
					MovingTime: 3600, KiloCalories: 650, StartDateLocal: testNow.Add(-1 * time.Hour)},
			},
		},
	}
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.GetChallengeFunc = func(ctx context.Context, id string) (*types.Challenge, error) {
		return c, nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	w := doRequest(h, http.MethodGet, "/challenges/c1/athletes/7", "sess-7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp athleteBreakdown
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "15.00", resp.Score)
	require.Len(t, resp.Activities, 2)
	// Newest activity leads.
	assert.Equal(t, "Evening Run", resp.Activities[0].Name)
	assert.Equal(t, "10.00", resp.Activities[0].Score)
	assert.Equal(t, "10000m", resp.Activities[0].Distance)
	assert.Equal(t, "01:00:00", resp.Activities[0].MovingTime)
	assert.Equal(t, "650Cal", resp.Activities[0].Calories)
	assert.Equal(t, "5.00", resp.Activities[1].Score)
}

func TestSyncSelfCreatesJob(t *testing.T) {
	var job *types.Sync
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	db.CreateSyncFunc = func(ctx context.Context, sync *types.Sync) error {
		job = sync
		return nil
	}
	pub := &mocks.MockPublisher{}
	h := newTestHandler(db, pub)

	w := doRequest(h, http.MethodPost, "/sync", "sess-7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp syncResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, job)
	assert.Equal(t, job.ID, resp.SyncID)
	assert.Equal(t, []int64{7}, job.AthletesToSync)
	require.Len(t, pub.Published, 1)
	assert.Equal(t, shared.TopicSyncAthlete, pub.Published[0].Topic)
}

func TestSyncAllRequiresAdmin(t *testing.T) {
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	h := newTestHandler(db, &mocks.MockPublisher{})
	w := doRequest(h, http.MethodPost, "/sync/all", "sess-7", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecalculateRequiresAdmin(t *testing.T) {
	db := sessionDB(&types.Athlete{ID: 7, Username: "runner"})
	h := newTestHandler(db, &mocks.MockPublisher{})
	w := doRequest(h, http.MethodPost, "/recalculate", "sess-7", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecalculateRefreshesStatesAndStats(t *testing.T) {
	day := 24 * time.Hour
	stale := testChallenge("stale", testNow.Add(-30*day), testNow.Add(-10*day))
	stale.State = types.ChallengeCurrent

	var movedTo types.ChallengeState
	var recalculated []string
	db := sessionDB(&types.Athlete{ID: 1, Username: "owner"})
	db.ListChallengesFunc = func(ctx context.Context) ([]*types.Challenge, error) {
		return []*types.Challenge{stale}, nil
	}
	db.UpdateChallengeStatesFunc = func(ctx context.Context, ids []string, state types.ChallengeState) error {
		require.Equal(t, []string{"stale"}, ids)
		movedTo = state
		return nil
	}
	db.SetChallengeStatsFunc = func(ctx context.Context, id string, stats map[int64]*types.AthleteChallengeStats) error {
		recalculated = append(recalculated, id)
		return nil
	}
	h := newTestHandler(db, &mocks.MockPublisher{})

	w := doRequest(h, http.MethodPost, "/recalculate", "sess-1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, types.ChallengePast, movedTo)
	assert.Equal(t, []string{"stale"}, recalculated)
}
