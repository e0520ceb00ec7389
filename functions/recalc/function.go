// Package recalc checks sync job completion and rebuilds challenge stats.
package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/coordinator"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/types"
)

type Handler struct {
	Service     *bootstrap.Service
	Coordinator *coordinator.Coordinator
}

func New(svc *bootstrap.Service) *Handler {
	return &Handler{
		Service: svc,
		Coordinator: &coordinator.Coordinator{
			DB:     svc.DB,
			Events: infrapubsub.NewDispatcher(svc.Pub),
			Logger: bootstrap.NewLogger("recalc"),
		},
	}
}

// HTTP returns the push endpoint for the recalculation topic.
func (h *Handler) HTTP() http.HandlerFunc {
	return framework.WrapEvents("recalc", h.Service, h.Handle)
}

// States returns the endpoint the daily scheduler calls to roll challenge
// lifecycle states, guarded by the same token as the event endpoints.
func (h *Handler) States() http.HandlerFunc {
	return framework.WrapHTTP("update-states", h.Service, func(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
		if r.URL.Query().Get(framework.EventAuthParam) != h.Service.Config.EventAuthToken {
			return nil, framework.ErrNotAuthenticated
		}
		return nil, h.Coordinator.UpdateAllStates(ctx)
	})
}

// Handle checks each distinct job in the batch. Every athlete completion
// emits its own event, so a finishing job typically delivers several with
// the same job ID; one check is enough.
func (h *Handler) Handle(ctx context.Context, envelopes []types.Envelope, fw *framework.Context) error {
	syncIDs := decode(envelopes, fw.Logger)

	var errs error
	for _, syncID := range syncIDs {
		if err := h.Coordinator.CheckRecalculate(ctx, syncID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("recalculate check for job %s: %w", syncID, err))
		}
	}
	return errs
}

func decode(envelopes []types.Envelope, logger *slog.Logger) []string {
	seen := map[string]bool{}

	var syncIDs []string
	for _, env := range envelopes {
		if env.Subject != shared.RecalculateSubject || env.EventType != shared.RecalculateType {
			logger.Warn("Foreign envelope dropped", "subject", env.Subject, "event_type", env.EventType)
			continue
		}
		var ev types.SyncAthleteEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			logger.Warn("Undecodable recalculate event dropped", "envelope_id", env.ID, "error", err)
			continue
		}
		if seen[ev.SyncID] {
			continue
		}
		seen[ev.SyncID] = true
		syncIDs = append(syncIDs, ev.SyncID)
	}
	return syncIDs
}
