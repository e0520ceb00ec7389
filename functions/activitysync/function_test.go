package activitysync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/reconcile"
	"github.com/pacelap/server/pkg/testing/mocks"
	"github.com/pacelap/server/pkg/types"
)

type stubFetcher struct {
	activities map[int64]*types.Activity
}

func (s *stubFetcher) ListActivities(ctx context.Context, after, before time.Time) ([]*types.Activity, error) {
	return nil, nil
}

func (s *stubFetcher) GetActivity(ctx context.Context, id int64) (*types.Activity, error) {
	if a, ok := s.activities[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no activity %d", id)
}

func newHandler(db *mocks.MockDatabase, pub *mocks.MockPublisher, fetcher *stubFetcher) *Handler {
	svc := &bootstrap.Service{DB: db, Pub: pub, Config: &bootstrap.Config{}}
	return &Handler{
		Service: svc,
		Events:  infrapubsub.NewDispatcher(pub),
		NewClient: func(int64, *slog.Logger) reconcile.ActivityFetcher {
			return fetcher
		},
	}
}

func envelope(t *testing.T, subject, eventType string, data interface{}) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return types.Envelope{
		ID: "env", Subject: subject, EventType: eventType,
		DataVersion: shared.EventDataVersion, Data: raw,
	}
}

func activityEnvelope(t *testing.T, ev types.SyncActivityEvent) types.Envelope {
	return envelope(t, shared.SyncActivitySubject, shared.SyncActivityType, ev)
}

func fwContext(svc *bootstrap.Service) *framework.Context {
	return &framework.Context{Service: svc, Logger: slog.Default()}
}

func TestHandleDeletesThenFetches(t *testing.T) {
	ext := true
	fetcher := &stubFetcher{activities: map[int64]*types.Activity{
		42: {ID: 42, AthleteID: 7, ExtendedInfo: &ext},
	}}

	var order []string
	db := &mocks.MockDatabase{
		DeleteActivityFunc: func(ctx context.Context, id int64) error {
			order = append(order, fmt.Sprintf("delete-%d", id))
			return nil
		},
		UpsertActivityFunc: func(ctx context.Context, a *types.Activity) error {
			order = append(order, fmt.Sprintf("upsert-%d", a.ID))
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	h := newHandler(db, pub, fetcher)

	batch := []types.Envelope{
		activityEnvelope(t, types.SyncActivityEvent{AthleteID: 7, ActivityID: 42, SyncKind: types.ActivitySyncCreate}),
		activityEnvelope(t, types.SyncActivityEvent{AthleteID: 7, ActivityID: 99, SyncKind: types.ActivitySyncDelete}),
	}
	err := h.Handle(context.Background(), batch, fwContext(h.Service))
	require.NoError(t, err)

	assert.Equal(t, []string{"delete-99", "upsert-42"}, order)

	// The batch always ends with an ungated recalculation request.
	require.Len(t, pub.Published, 1)
	assert.Equal(t, shared.TopicRecalculate, pub.Published[0].Topic)
	var recalc types.SyncAthleteEvent
	require.NoError(t, json.Unmarshal(pub.Published[0].Event.Data(), &recalc))
	assert.Equal(t, shared.AlwaysRecalculate, recalc.SyncID)
}

func TestHandleDeduplicatesAndFiltersEnvelopes(t *testing.T) {
	ext := true
	fetcher := &stubFetcher{activities: map[int64]*types.Activity{
		42: {ID: 42, AthleteID: 7, ExtendedInfo: &ext},
	}}

	fetches := 0
	db := &mocks.MockDatabase{
		UpsertActivityFunc: func(ctx context.Context, a *types.Activity) error {
			fetches++
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	h := newHandler(db, pub, fetcher)

	create := types.SyncActivityEvent{AthleteID: 7, ActivityID: 42, SyncKind: types.ActivitySyncCreate}
	batch := []types.Envelope{
		activityEnvelope(t, create),
		activityEnvelope(t, create), // duplicate delivery
		envelope(t, shared.RecalculateSubject, shared.RecalculateType, types.SyncAthleteEvent{}), // foreign
	}
	err := h.Handle(context.Background(), batch, fwContext(h.Service))
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestHandleEmptyBatchEmitsNothing(t *testing.T) {
	pub := &mocks.MockPublisher{}
	h := newHandler(&mocks.MockDatabase{}, pub, &stubFetcher{})

	err := h.Handle(context.Background(), nil, fwContext(h.Service))
	require.NoError(t, err)
	assert.Empty(t, pub.Published)
}

func TestHandleStillRecalculatesWhenAFetchFails(t *testing.T) {
	pub := &mocks.MockPublisher{}
	h := newHandler(&mocks.MockDatabase{}, pub, &stubFetcher{}) // fetcher knows no activities

	batch := []types.Envelope{
		activityEnvelope(t, types.SyncActivityEvent{AthleteID: 7, ActivityID: 42, SyncKind: types.ActivitySyncCreate}),
	}
	err := h.Handle(context.Background(), batch, fwContext(h.Service))
	require.Error(t, err)
	require.Len(t, pub.Published, 1)
	assert.Equal(t, shared.TopicRecalculate, pub.Published[0].Topic)
}
