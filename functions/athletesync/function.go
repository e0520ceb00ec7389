// Package athletesync reconciles whole athlete windows in response to sync
// job fan-out events.
package athletesync

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

// HTTP returns the push endpoint for the athlete sync topic.
func (h *Handler) HTTP() http.HandlerFunc {
	return framework.WrapEvents("athlete-sync", h.Service, h.Handle)
}

// Handle reconciles each athlete in the batch once per job. The reconciler
// reports job completion itself, failure included, so a broken athlete can
// never wedge the job's recalculation gate.
func (h *Handler) Handle(ctx context.Context, envelopes []types.Envelope, fw *framework.Context) error {
	events := decode(envelopes, fw.Logger)

	var errs error
	for _, ev := range events {
		r := &reconcile.Reconciler{
			DB:     h.Service.DB,
			Events: h.Events,
			NewClient: func(athleteID int64) reconcile.ActivityFetcher {
				return h.NewClient(athleteID, fw.Logger)
			},
			Logger: fw.Logger,
		}
		if err := r.SyncAthlete(ctx, ev.AthleteID, ev.SyncID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("sync athlete %d: %w", ev.AthleteID, err))
		}
	}
	return errs
}

// decode keeps one event per athlete and job. The same fan-out may deliver
// an athlete twice; reconciling twice is wasted API quota for no new data.
func decode(envelopes []types.Envelope, logger *slog.Logger) []types.SyncAthleteEvent {
	type key struct {
		athleteID int64
		syncID    string
	}
	seen := map[key]bool{}

	var events []types.SyncAthleteEvent
	for _, env := range envelopes {
		if env.Subject != shared.SyncAthleteSubject || env.EventType != shared.SyncAthleteType {
			logger.Warn("Foreign envelope dropped", "subject", env.Subject, "event_type", env.EventType)
			continue
		}
		var ev types.SyncAthleteEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Warn("Undecodable athlete sync event dropped", "envelope_id", env.ID, "error", err)
			continue
		}
		k := key{ev.AthleteID, ev.SyncID}
		if seen[k] {
			continue
		}
		seen[k] = true
		events = append(events, ev)
	}
	return events
}
