// Package webhook receives Strava's push notifications and turns them into
// activity sync events.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/types"
)

// NewVerifyHandler answers Strava's subscription handshake: echo
// hub.challenge back when hub.verify_token matches.
func NewVerifyHandler(svc *bootstrap.Service) http.HandlerFunc {
	return framework.WrapHTTP("webhook-verify", svc, func(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
		query := r.URL.Query()
		if query.Get("hub.verify_token") != svc.Config.WebhookVerifyToken {
			fw.Logger.Warn("Webhook verification with wrong token")
			return nil, framework.ErrNotAuthenticated
		}
		fw.Logger.Info("Webhook subscription verified")
		return map[string]string{"hub.challenge": query.Get("hub.challenge")}, nil
	})
}

// NewPushHandler consumes push notifications. Strava retries non-2xx
// responses, so only publish failures surface as errors.
func NewPushHandler(svc *bootstrap.Service) http.HandlerFunc {
	events := infrapubsub.NewDispatcher(svc.Pub)

	return framework.WrapHTTP("webhook-push", svc, func(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
		var push types.WebhookPush
		if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
			return nil, framework.BadRequest(fmt.Errorf("decode push: %w", err))
		}

		known, err := svc.DB.HasSubscription(ctx, push.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("check subscription %d: %w", push.SubscriptionID, err)
		}
		if !known {
			fw.Logger.Warn("Push for unknown subscription dropped", "subscription_id", push.SubscriptionID)
			return nil, framework.BadRequest(fmt.Errorf("unknown subscription %d", push.SubscriptionID))
		}

		// Strava probes with owner_id 0 when (re)registering a subscription.
		if push.OwnerID == 0 {
			fw.Logger.Info("Warmup push ignored")
			return map[string]bool{"ok": true}, nil
		}
		if push.ObjectType != "activity" {
			fw.Logger.Info("Non-activity push ignored", "object_type", push.ObjectType)
			return map[string]bool{"ok": true}, nil
		}

		ev := types.SyncActivityEvent{
			AthleteID:  push.OwnerID,
			ActivityID: push.ObjectID,
			SyncKind:   types.ActivitySyncKind(push.AspectType),
		}
		if err := events.SyncActivity(ctx, ev); err != nil {
			return nil, err
		}
		fw.Logger.Info("Activity sync requested",
			"athlete_id", push.OwnerID, "activity_id", push.ObjectID, "kind", push.AspectType)
		return map[string]bool{"ok": true}, nil
	})
}
