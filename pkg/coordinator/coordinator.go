// Package coordinator drives fan-out sync jobs and the recalculation that
// follows them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/domain/aggregate"
	"github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/types"
)

type Coordinator struct {
	DB     shared.Database
	Events *pubsub.Dispatcher
	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// StartSyncAll creates one fan-out job covering every registered athlete and
// emits a sync request per athlete. Returns the job ID.
func (c *Coordinator) StartSyncAll(ctx context.Context) (string, error) {
	athletes, err := c.DB.ListAthletes(ctx)
	if err != nil {
		return "", fmt.Errorf("list athletes: %w", err)
	}
	ids := make([]int64, len(athletes))
	for i, a := range athletes {
		ids[i] = a.ID
	}
	return c.startSync(ctx, ids)
}

// StartSyncAthlete creates a single-athlete job, used by first login and the
// per-athlete sync endpoint.
func (c *Coordinator) StartSyncAthlete(ctx context.Context, athleteID int64) (string, error) {
	return c.startSync(ctx, []int64{athleteID})
}

func (c *Coordinator) startSync(ctx context.Context, athleteIDs []int64) (string, error) {
	job := &types.Sync{
		ID:             uuid.NewString(),
		AthletesToSync: athleteIDs,
		SyncedAthletes: []int64{},
		Timestamp:      c.now().UTC(),
	}
	if err := c.DB.CreateSync(ctx, job); err != nil {
		return "", fmt.Errorf("create sync job: %w", err)
	}
	c.Logger.Info("Sync job created", "sync_id", job.ID, "athletes", len(athleteIDs))

	// With nobody to sync the job is already complete. Emit the completion
	// event directly so the gating path recalculates and removes the record.
	if len(athleteIDs) == 0 {
		return job.ID, c.Events.Recalculate(ctx, types.SyncAthleteEvent{SyncID: job.ID})
	}

	var errs error
	for _, id := range athleteIDs {
		ev := types.SyncAthleteEvent{AthleteID: id, SyncID: job.ID}
		if err := c.Events.SyncAthlete(ctx, ev); err != nil {
			errs = errors.Join(errs, fmt.Errorf("emit sync for athlete %d: %w", id, err))
		}
	}
	return job.ID, errs
}

// CheckRecalculate recalculates every challenge once the job syncID has seen
// all its athletes complete. The sentinel job ID bypasses gating entirely.
// Duplicate completion events are expected: whichever consumer observes the
// completed job first deletes it, later ones find it gone and do nothing.
func (c *Coordinator) CheckRecalculate(ctx context.Context, syncID string) error {
	if syncID == shared.AlwaysRecalculate {
		return c.RecalculateAll(ctx)
	}

	job, err := c.DB.GetSync(ctx, syncID)
	if err != nil {
		var notFound *shared.ErrNotFound
		if errors.As(err, &notFound) {
			c.Logger.Info("Sync job already finished", "sync_id", syncID)
			return nil
		}
		return fmt.Errorf("get sync job %s: %w", syncID, err)
	}
	if !job.Complete() {
		c.Logger.Info("Sync job not complete yet",
			"sync_id", syncID, "synced", len(job.SyncedAthletes), "total", len(job.AthletesToSync))
		return nil
	}

	// Delete the job before aggregating so a concurrent duplicate event
	// cannot observe it as complete and recalculate a second time.
	if err := c.DB.DeleteSync(ctx, syncID); err != nil {
		c.Logger.Error("Deleting finished sync job failed", "sync_id", syncID, "error", err)
	}
	return c.RecalculateAll(ctx)
}

// RecalculateAll rebuilds the stats of every challenge from the activity
// mirror, one goroutine per challenge.
func (c *Coordinator) RecalculateAll(ctx context.Context) error {
	challenges, err := c.DB.ListChallenges(ctx)
	if err != nil {
		return fmt.Errorf("list challenges: %w", err)
	}
	athletes, err := c.DB.ListAthletes(ctx)
	if err != nil {
		return fmt.Errorf("list athletes: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(challenges))
	for i, ch := range challenges {
		wg.Add(1)
		go func(i int, ch *types.Challenge) {
			defer wg.Done()
			errs[i] = c.recalculate(ctx, ch, athletes)
		}(i, ch)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (c *Coordinator) recalculate(ctx context.Context, ch *types.Challenge, athletes []*types.Athlete) error {
	from, before := aggregate.Window(ch)
	activities, err := c.DB.ListActivitiesByLocalStart(ctx, from, before)
	if err != nil {
		return fmt.Errorf("list activities for challenge %s: %w", ch.ID, err)
	}
	stats := aggregate.Stats(ch, activities, athletes)
	if err := c.DB.SetChallengeStats(ctx, ch.ID, stats); err != nil {
		return fmt.Errorf("store stats for challenge %s: %w", ch.ID, err)
	}
	c.Logger.Info("Challenge recalculated", "challenge_id", ch.ID, "athletes", len(stats))
	return nil
}

// UpdateAllStates moves challenges through the upcoming/current/past
// lifecycle, one grouped write per target state.
func (c *Coordinator) UpdateAllStates(ctx context.Context) error {
	challenges, err := c.DB.ListChallenges(ctx)
	if err != nil {
		return fmt.Errorf("list challenges: %w", err)
	}

	now := c.now()
	changed := map[types.ChallengeState][]string{}
	for _, ch := range challenges {
		state := types.StateAt(now, ch.From, ch.To)
		if state != ch.State {
			changed[state] = append(changed[state], ch.ID)
		}
	}

	var errs error
	for state, ids := range changed {
		if err := c.DB.UpdateChallengeStates(ctx, ids, state); err != nil {
			errs = errors.Join(errs, fmt.Errorf("update %d challenges to %s: %w", len(ids), state, err))
			continue
		}
		c.Logger.Info("Challenge states updated", "state", state, "count", len(ids))
	}
	return errs
}
