package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/types"
)

// EventSource identifies this service as the origin of its sync events.
const EventSource = "pacelap/sync"

// Dispatcher fans typed sync events out to the event transport. Delivery is
// at-least-once and unordered; consumers are responsible for deduplication.
type Dispatcher struct {
	Pub shared.Publisher
}

func NewDispatcher(pub shared.Publisher) *Dispatcher {
	return &Dispatcher{Pub: pub}
}

func (d *Dispatcher) publish(ctx context.Context, topic, subject, eventType string, data interface{}) error {
	e, err := NewCloudEvent(EventSource, subject, eventType, data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	e.SetID(uuid.NewString())
	e.SetTime(time.Now().UTC())
	e.SetExtension("dataversion", shared.EventDataVersion)

	if _, err := d.Pub.PublishCloudEvent(ctx, topic, e); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// SyncActivity requests a fetch or delete of one activity.
func (d *Dispatcher) SyncActivity(ctx context.Context, ev types.SyncActivityEvent) error {
	return d.publish(ctx, shared.TopicSyncActivity, shared.SyncActivitySubject, shared.SyncActivityType, ev)
}

// SyncAthlete requests a full window reconciliation for one athlete.
func (d *Dispatcher) SyncAthlete(ctx context.Context, ev types.SyncAthleteEvent) error {
	return d.publish(ctx, shared.TopicSyncAthlete, shared.SyncAthleteSubject, shared.SyncAthleteType, ev)
}

// Recalculate requests a challenge stats recalculation check for a job.
func (d *Dispatcher) Recalculate(ctx context.Context, ev types.SyncAthleteEvent) error {
	return d.publish(ctx, shared.TopicRecalculate, shared.RecalculateSubject, shared.RecalculateType, ev)
}
