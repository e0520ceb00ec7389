package types

import (
	"encoding/json"
	"time"
)

// ActivitySyncKind mirrors the webhook aspect_type values.
type ActivitySyncKind string

const (
	ActivitySyncCreate ActivitySyncKind = "create"
	ActivitySyncUpdate ActivitySyncKind = "update"
	ActivitySyncDelete ActivitySyncKind = "delete"
)

// SyncActivityEvent asks the activity-sync stage to fetch or delete a single
// activity for an athlete.
type SyncActivityEvent struct {
	AthleteID  int64            `json:"athleteId"`
	ActivityID int64            `json:"activityId"`
	SyncKind   ActivitySyncKind `json:"syncType"`
}

// SyncAthleteEvent asks the athlete-sync stage to reconcile one athlete's
// window, or the recalculation stage to check completion of job SyncID.
// SyncID may be the AlwaysRecalculate sentinel.
type SyncAthleteEvent struct {
	AthleteID int64  `json:"athleteId"`
	SyncID    string `json:"syncId"`
}

// Envelope is the event-transport wrapper delivered to consumer endpoints in
// batches. The JSON tags are the CloudEvents v1.0 attribute names the
// dispatcher publishes. Delivery is at-least-once and unordered; consumers
// filter by subject+type and deduplicate before acting.
type Envelope struct {
	ID          string          `json:"id"`
	Subject     string          `json:"subject"`
	EventType   string          `json:"type"`
	EventTime   time.Time       `json:"time"`
	DataVersion string          `json:"dataversion"`
	Data        json.RawMessage `json:"data"`
}

// WebhookPush is Strava's push notification payload.
// ref: https://developers.strava.com/docs/webhooks/
type WebhookPush struct {
	AspectType     string `json:"aspect_type"` // create, update or delete
	EventTime      int64  `json:"event_time"`
	ObjectID       int64  `json:"object_id"` // activity ID for activity events
	ObjectType     string `json:"object_type"`
	OwnerID        int64  `json:"owner_id"`
	SubscriptionID int64  `json:"subscription_id"`
}
