package recalc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/coordinator"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/testing/mocks"
	"github.com/pacelap/server/pkg/types"
)

func newHandler(db *mocks.MockDatabase) *Handler {
	svc := &bootstrap.Service{DB: db, Pub: &mocks.MockPublisher{}, Config: &bootstrap.Config{EventAuthToken: "secret"}}
	return &Handler{
		Service: svc,
		Coordinator: &coordinator.Coordinator{
			DB:     db,
			Events: infrapubsub.NewDispatcher(svc.Pub),
			Logger: slog.Default(),
		},
	}
}

func recalcEnvelope(t *testing.T, syncID string) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(types.SyncAthleteEvent{AthleteID: 7, SyncID: syncID})
	require.NoError(t, err)
	return types.Envelope{
		ID: "env", Subject: shared.RecalculateSubject, EventType: shared.RecalculateType,
		DataVersion: shared.EventDataVersion, Data: raw,
	}
}

// A finishing job delivers one completion event per athlete, all carrying the
// same job ID. The batch must collapse to a single completion check.
func TestHandleChecksEachJobOnce(t *testing.T) {
	var checks []string
	var deleted []string
	db := &mocks.MockDatabase{
		GetSyncFunc: func(ctx context.Context, id string) (*types.Sync, error) {
			checks = append(checks, id)
			return &types.Sync{ID: id, AthletesToSync: []int64{7}, SyncedAthletes: []int64{7}}, nil
		},
		DeleteSyncFunc: func(ctx context.Context, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	h := newHandler(db)

	batch := []types.Envelope{
		recalcEnvelope(t, "job-1"),
		recalcEnvelope(t, "job-1"),
		recalcEnvelope(t, "job-2"),
	}
	fw := &framework.Context{Service: h.Service, Logger: slog.Default()}
	err := h.Handle(context.Background(), batch, fw)
	require.NoError(t, err)

	assert.Equal(t, []string{"job-1", "job-2"}, checks)
	assert.ElementsMatch(t, []string{"job-1", "job-2"}, deleted)
}

func TestHandleIncompleteJobKeepsRecord(t *testing.T) {
	db := &mocks.MockDatabase{
		GetSyncFunc: func(ctx context.Context, id string) (*types.Sync, error) {
			return &types.Sync{ID: id, AthletesToSync: []int64{7, 8}, SyncedAthletes: []int64{7}}, nil
		},
		DeleteSyncFunc: func(ctx context.Context, id string) error {
			t.Fatalf("unexpected delete of job %s", id)
			return nil
		},
	}
	h := newHandler(db)

	fw := &framework.Context{Service: h.Service, Logger: slog.Default()}
	err := h.Handle(context.Background(), []types.Envelope{recalcEnvelope(t, "job-1")}, fw)
	require.NoError(t, err)
}

func TestStatesEndpoint(t *testing.T) {
	day := 24 * time.Hour
	now := time.Now()
	ended := &types.Challenge{
		ID: "ended", From: now.Add(-30 * day), To: now.Add(-10 * day),
		State: types.ChallengeCurrent,
	}

	var moved []string
	db := &mocks.MockDatabase{
		ListChallengesFunc: func(ctx context.Context) ([]*types.Challenge, error) {
			return []*types.Challenge{ended}, nil
		},
		UpdateChallengeStatesFunc: func(ctx context.Context, ids []string, state types.ChallengeState) error {
			assert.Equal(t, types.ChallengePast, state)
			moved = append(moved, ids...)
			return nil
		},
	}
	h := newHandler(db)

	t.Run("bad token", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.States()(w, httptest.NewRequest(http.MethodPost, "/internal/update-states?x-custom-auth=wrong", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, moved)
	})

	t.Run("rolls stale states", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.States()(w, httptest.NewRequest(http.MethodPost, "/internal/update-states?x-custom-auth=secret", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"ended"}, moved)
	})
}

func TestHandleIgnoresForeignEnvelopes(t *testing.T) {
	db := &mocks.MockDatabase{
		GetSyncFunc: func(ctx context.Context, id string) (*types.Sync, error) {
			t.Fatalf("unexpected completion check for %s", id)
			return nil, nil
		},
	}
	h := newHandler(db)

	batch := []types.Envelope{
		{ID: "env", Subject: shared.SyncAthleteSubject, EventType: shared.SyncAthleteType, Data: json.RawMessage(`{}`)},
	}
	fw := &framework.Context{Service: h.Service, Logger: slog.Default()}
	err := h.Handle(context.Background(), batch, fw)
	require.NoError(t, err)
}
