// Package activitysync applies single-activity changes pushed by the
// webhook: deletes first, then detail fetches for creates and updates.
package activitysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/integrations/strava"
	"github.com/pacelap/server/pkg/reconcile"
	"github.com/pacelap/server/pkg/types"
)

type Handler struct {
	Service *bootstrap.Service
	Events  *infrapubsub.Dispatcher

	// NewClient is swappable in tests.
	NewClient func(athleteID int64, logger *slog.Logger) reconcile.ActivityFetcher
}

func New(svc *bootstrap.Service) *Handler {
	return &Handler{
		Service: svc,
		Events:  infrapubsub.NewDispatcher(svc.Pub),
		NewClient: func(athleteID int64, logger *slog.Logger) reconcile.ActivityFetcher {
			return strava.NewClient(svc.DB, svc.Config.StravaClientID, svc.Config.StravaClientSecret, athleteID, logger)
		},
	}
}

// HTTP returns the push endpoint for the activity sync topic.
func (h *Handler) HTTP() http.HandlerFunc {
	return framework.WrapEvents("activity-sync", h.Service, h.Handle)
}

// Handle processes one delivered batch. Challenges are recalculated after
// any processed event, even when some of them failed, so leaderboards never
// lag behind a partial batch.
func (h *Handler) Handle(ctx context.Context, envelopes []types.Envelope, fw *framework.Context) (errs error) {
	events := decode(envelopes, fw.Logger)
	if len(events) == 0 {
		return nil
	}

	defer func() {
		ev := types.SyncAthleteEvent{SyncID: shared.AlwaysRecalculate}
		if err := h.Events.Recalculate(ctx, ev); err != nil {
			errs = errors.Join(errs, fmt.Errorf("emit recalculate: %w", err))
		}
	}()

	for _, ev := range events {
		if ev.SyncKind != types.ActivitySyncDelete {
			continue
		}
		if err := h.Service.DB.DeleteActivity(ctx, ev.ActivityID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("delete activity %d: %w", ev.ActivityID, err))
			continue
		}
		fw.Logger.Info("Activity deleted", "activity_id", ev.ActivityID, "athlete_id", ev.AthleteID)
	}

	for _, ev := range events {
		if ev.SyncKind == types.ActivitySyncDelete {
			continue
		}
		client := h.NewClient(ev.AthleteID, fw.Logger)
		activity, err := client.GetActivity(ctx, ev.ActivityID)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("fetch activity %d: %w", ev.ActivityID, err))
			continue
		}
		if err := h.Service.DB.UpsertActivity(ctx, activity); err != nil {
			errs = errors.Join(errs, fmt.Errorf("upsert activity %d: %w", ev.ActivityID, err))
			continue
		}
		fw.Logger.Info("Activity stored", "activity_id", ev.ActivityID, "athlete_id", ev.AthleteID, "kind", ev.SyncKind)
	}
	return errs
}

// decode filters the batch down to activity sync events, dropping foreign
// and duplicate entries. Delivery is at-least-once, so the same activity may
// arrive several times in one batch.
func decode(envelopes []types.Envelope, logger *slog.Logger) []types.SyncActivityEvent {
	type key struct {
		athleteID  int64
		activityID int64
		kind       types.ActivitySyncKind
	}
	seen := map[key]bool{}

	var events []types.SyncActivityEvent
	for _, env := range envelopes {
		if env.Subject != shared.SyncActivitySubject || env.EventType != shared.SyncActivityType {
			logger.Warn("Foreign envelope dropped", "subject", env.Subject, "event_type", env.EventType)
			continue
		}
		var ev types.SyncActivityEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Warn("Undecodable activity sync event dropped", "envelope_id", env.ID, "error", err)
			continue
		}
		k := key{ev.AthleteID, ev.ActivityID, ev.SyncKind}
		if seen[k] {
			continue
		}
		seen[k] = true
		events = append(events, ev)
	}
	return events
}
