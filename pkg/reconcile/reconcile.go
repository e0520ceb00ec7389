// Package reconcile keeps the local activity mirror in step with Strava for
// one athlete at a time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/types"
)

// windowDays is how far back a full reconciliation looks. The window ends
// tomorrow so activities recorded today in any timezone are included.
const windowDays = 35

// ActivityFetcher is the slice of the Strava client the reconciler needs.
type ActivityFetcher interface {
	ListActivities(ctx context.Context, after, before time.Time) ([]*types.Activity, error)
	GetActivity(ctx context.Context, id int64) (*types.Activity, error)
}

// Reconciler synchronizes one athlete's activity window per call.
type Reconciler struct {
	DB        shared.Database
	Events    *pubsub.Dispatcher
	NewClient func(athleteID int64) ActivityFetcher
	Logger    *slog.Logger
	Now       func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Window returns the UTC bounds of the reconciliation window ending
// tomorrow.
func (r *Reconciler) Window() (after, before time.Time) {
	before = r.now().UTC().AddDate(0, 0, 1)
	after = before.AddDate(0, 0, -windowDays)
	return after, before
}

// SyncAthlete reconciles the athlete's window and reports completion on job
// syncID. Completion is signaled even when reconciliation fails: a stuck
// job would otherwise block recalculation for every other athlete in it.
func (r *Reconciler) SyncAthlete(ctx context.Context, athleteID int64, syncID string) (err error) {
	defer func() {
		if sigErr := r.signalDone(ctx, athleteID, syncID); sigErr != nil {
			err = errors.Join(err, sigErr)
		}
	}()

	after, before := r.Window()
	client := r.NewClient(athleteID)

	remote, err := client.ListActivities(ctx, after, before)
	if err != nil {
		return fmt.Errorf("list remote activities for athlete %d: %w", athleteID, err)
	}
	stored, err := r.DB.ListAthleteActivitiesByStartDate(ctx, athleteID, after, before)
	if err != nil {
		return fmt.Errorf("list stored activities for athlete %d: %w", athleteID, err)
	}

	diff := FindDifferences(stored, remote)
	r.Logger.Info("Reconciling athlete window",
		"athlete_id", athleteID,
		"remote", len(remote), "stored", len(stored),
		"create", len(diff.Create), "upgrade", len(diff.Upgrade), "delete", len(diff.Delete))

	// Deletes first: a deleted-and-recreated activity must not race its own
	// removal.
	if len(diff.Delete) > 0 {
		if err := r.DB.DeleteActivities(ctx, diff.Delete); err != nil {
			return fmt.Errorf("delete activities: %w", err)
		}
	}

	fetch := append(append([]*types.Activity{}, diff.Create...), diff.Upgrade...)
	detailed := r.fetchDetails(ctx, client, fetch)

	for _, a := range detailed {
		if err := r.DB.UpsertActivity(ctx, a); err != nil {
			return fmt.Errorf("upsert activity %d: %w", a.ID, err)
		}
	}
	return nil
}

// fetchDetails loads full detail for each listed activity concurrently.
// A failed detail fetch degrades to the list-level record so the sync still
// lands something; the next run upgrades it.
func (r *Reconciler) fetchDetails(ctx context.Context, client ActivityFetcher, listed []*types.Activity) []*types.Activity {
	out := make([]*types.Activity, len(listed))
	var wg sync.WaitGroup
	for i, a := range listed {
		wg.Add(1)
		go func(i int, a *types.Activity) {
			defer wg.Done()
			detail, err := client.GetActivity(ctx, a.ID)
			if err != nil {
				r.Logger.Warn("Detail fetch failed, keeping list-level record",
					"activity_id", a.ID, "athlete_id", a.AthleteID, "error", err)
				out[i] = a
				return
			}
			out[i] = detail
		}(i, a)
	}
	wg.Wait()
	return out
}

func (r *Reconciler) signalDone(ctx context.Context, athleteID int64, syncID string) error {
	if syncID != shared.AlwaysRecalculate {
		if err := r.DB.AddSyncedAthlete(ctx, syncID, athleteID); err != nil {
			return fmt.Errorf("mark athlete %d synced on job %s: %w", athleteID, syncID, err)
		}
	}
	ev := types.SyncAthleteEvent{AthleteID: athleteID, SyncID: syncID}
	if err := r.Events.Recalculate(ctx, ev); err != nil {
		return fmt.Errorf("emit recalculate for job %s: %w", syncID, err)
	}
	return nil
}
