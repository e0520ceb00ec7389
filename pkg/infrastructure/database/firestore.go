// Package database implements the persistence interface on Firestore.
package database

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"

	shared "github.com/pacelap/server/pkg"
	fstore "github.com/pacelap/server/pkg/storage/firestore"
	"github.com/pacelap/server/pkg/types"
)

// Firestore "in" queries accept at most 30 operands.
const maxInOperands = 30

type FirestoreAdapter struct {
	client *fstore.Client
	raw    *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		client: fstore.NewClient(client),
		raw:    client,
	}
}

func (a *FirestoreAdapter) Close() error {
	return a.client.Close()
}

func athleteKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// --- Athletes ---

func (a *FirestoreAdapter) GetAthlete(ctx context.Context, id int64) (*types.Athlete, error) {
	athlete, err := a.client.Athletes().Doc(athleteKey(id)).Get(ctx)
	if err != nil {
		return nil, err
	}
	if athlete == nil {
		return nil, &shared.ErrNotFound{Collection: shared.CollectionAthletes, Key: athleteKey(id)}
	}
	return athlete, nil
}

func (a *FirestoreAdapter) GetAthleteBySession(ctx context.Context, sessionID string) (*types.Athlete, error) {
	col := a.client.Athletes()
	athlete, err := col.First(ctx, col.Query().Where("session_id", "==", sessionID))
	if err != nil {
		return nil, err
	}
	if athlete == nil {
		return nil, &shared.ErrNotFound{Collection: shared.CollectionAthletes, Key: "session"}
	}
	return athlete, nil
}

func (a *FirestoreAdapter) ListAthletes(ctx context.Context) ([]*types.Athlete, error) {
	col := a.client.Athletes()
	return col.GetAll(ctx, col.Query())
}

func (a *FirestoreAdapter) ListAthletesByIDs(ctx context.Context, ids []int64) ([]*types.Athlete, error) {
	col := a.client.Athletes()
	var out []*types.Athlete
	for start := 0; start < len(ids); start += maxInOperands {
		end := start + maxInOperands
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := col.GetAll(ctx, col.Query().Where("id", "in", ids[start:end]))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (a *FirestoreAdapter) UpsertAthlete(ctx context.Context, athlete *types.Athlete) (bool, error) {
	existed := false
	doc := a.raw.Collection(shared.CollectionAthletes).Doc(athleteKey(athlete.ID))
	err := a.raw.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err == nil && snap.Exists() {
			existed = true
			// Keep the remaining fields (tokens, session) intact.
			return tx.Set(doc, map[string]interface{}{
				"username":         athlete.Username,
				"avatar_small_url": athlete.AvatarSmallURL,
				"avatar_url":       athlete.AvatarURL,
				"access_token":     athlete.AccessToken,
				"refresh_token":    athlete.RefreshToken,
				"expires_at":       athlete.ExpiresAt,
			}, firestore.MergeAll)
		}
		return tx.Set(doc, fstore.AthleteToFirestore(athlete))
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

func (a *FirestoreAdapter) UpdateAthleteTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt int64) error {
	return a.client.Athletes().Doc(athleteKey(id)).Update(ctx, []firestore.Update{
		{Path: "access_token", Value: accessToken},
		{Path: "refresh_token", Value: refreshToken},
		{Path: "expires_at", Value: expiresAt},
	})
}

func (a *FirestoreAdapter) RotateAthleteSession(ctx context.Context, id int64, sessionID string) error {
	return a.client.Athletes().Doc(athleteKey(id)).Update(ctx, []firestore.Update{
		{Path: "session_id", Value: sessionID},
	})
}

// --- Activities ---

func (a *FirestoreAdapter) UpsertActivity(ctx context.Context, activity *types.Activity) error {
	return a.client.Activities().Doc(strconv.FormatInt(activity.ID, 10)).Set(ctx, activity)
}

func (a *FirestoreAdapter) DeleteActivity(ctx context.Context, id int64) error {
	return a.client.Activities().Doc(strconv.FormatInt(id, 10)).Delete(ctx)
}

func (a *FirestoreAdapter) DeleteActivities(ctx context.Context, ids []int64) error {
	bw := a.raw.BulkWriter(ctx)
	col := a.raw.Collection(shared.CollectionActivities)
	for _, id := range ids {
		if _, err := bw.Delete(col.Doc(strconv.FormatInt(id, 10))); err != nil {
			return err
		}
	}
	bw.End()
	return nil
}

func (a *FirestoreAdapter) ListAthleteActivitiesByStartDate(ctx context.Context, athleteID int64, from, to time.Time) ([]*types.Activity, error) {
	col := a.client.Activities()
	q := col.Query().
		Where("athlete_id", "==", athleteID).
		Where("start_date", ">=", from).
		Where("start_date", "<=", to)
	return col.GetAll(ctx, q)
}

func (a *FirestoreAdapter) ListActivitiesByLocalStart(ctx context.Context, from, before time.Time) ([]*types.Activity, error) {
	col := a.client.Activities()
	q := col.Query().
		Where("start_date_local", ">=", from).
		Where("start_date_local", "<", before)
	return col.GetAll(ctx, q)
}

// --- Challenges ---

func (a *FirestoreAdapter) GetChallenge(ctx context.Context, id string) (*types.Challenge, error) {
	challenge, err := a.client.Challenges().Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, &shared.ErrNotFound{Collection: shared.CollectionChallenges, Key: id}
	}
	return challenge, nil
}

func (a *FirestoreAdapter) ListChallenges(ctx context.Context) ([]*types.Challenge, error) {
	col := a.client.Challenges()
	return col.GetAll(ctx, col.Query())
}

func (a *FirestoreAdapter) InsertChallenge(ctx context.Context, challenge *types.Challenge) error {
	return a.client.Challenges().Doc(challenge.ID).Set(ctx, challenge)
}

func (a *FirestoreAdapter) UpdateChallenge(ctx context.Context, challenge *types.Challenge) error {
	return a.client.Challenges().Doc(challenge.ID).Set(ctx, challenge)
}

func (a *FirestoreAdapter) DeleteChallenge(ctx context.Context, id string) error {
	return a.client.Challenges().Doc(id).Delete(ctx)
}

func (a *FirestoreAdapter) SetChallengeStats(ctx context.Context, id string, stats map[int64]*types.AthleteChallengeStats) error {
	converted := make(map[string]interface{}, len(stats))
	for athleteID, s := range stats {
		converted[athleteKey(athleteID)] = fstore.StatsToFirestore(s)
	}
	return a.client.Challenges().Doc(id).Update(ctx, []firestore.Update{
		{Path: "athletes_stats", Value: converted},
	})
}

func (a *FirestoreAdapter) JoinChallenge(ctx context.Context, id string, stats *types.AthleteChallengeStats) error {
	doc := a.raw.Collection(shared.CollectionChallenges).Doc(id)
	key := athleteKey(stats.AthleteID)
	return a.raw.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if existing, ok := snap.Data()["athletes_stats"].(map[string]interface{}); ok {
			if _, member := existing[key]; member {
				return nil
			}
		}
		return tx.Update(doc, []firestore.Update{
			{FieldPath: firestore.FieldPath{"athletes_stats", key}, Value: fstore.StatsToFirestore(stats)},
		})
	})
}

func (a *FirestoreAdapter) LeaveChallenge(ctx context.Context, id string, athleteID int64) error {
	return a.client.Challenges().Doc(id).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"athletes_stats", athleteKey(athleteID)}, Value: firestore.Delete},
	})
}

func (a *FirestoreAdapter) UpdateChallengeStates(ctx context.Context, ids []string, state types.ChallengeState) error {
	if len(ids) == 0 {
		return nil
	}
	bw := a.raw.BulkWriter(ctx)
	col := a.raw.Collection(shared.CollectionChallenges)
	for _, id := range ids {
		_, err := bw.Update(col.Doc(id), []firestore.Update{
			{Path: "state", Value: string(state)},
		})
		if err != nil {
			return err
		}
	}
	bw.End()
	return nil
}

// --- Sync jobs ---

func (a *FirestoreAdapter) CreateSync(ctx context.Context, sync *types.Sync) error {
	return a.client.Syncs().Doc(sync.ID).Set(ctx, sync)
}

func (a *FirestoreAdapter) GetSync(ctx context.Context, id string) (*types.Sync, error) {
	sync, err := a.client.Syncs().Doc(id).Get(ctx)
	if err != nil {
		return nil, err
	}
	if sync == nil {
		return nil, &shared.ErrNotFound{Collection: shared.CollectionSyncs, Key: id}
	}
	return sync, nil
}

func (a *FirestoreAdapter) AddSyncedAthlete(ctx context.Context, id string, athleteID int64) error {
	return a.client.Syncs().Doc(id).Update(ctx, []firestore.Update{
		{Path: "synced_athletes", Value: firestore.ArrayUnion(athleteID)},
	})
}

func (a *FirestoreAdapter) DeleteSync(ctx context.Context, id string) error {
	return a.client.Syncs().Doc(id).Delete(ctx)
}

// --- Webhook subscriptions ---

func (a *FirestoreAdapter) HasSubscription(ctx context.Context, id int64) (bool, error) {
	sub, err := a.client.Subscriptions().Doc(strconv.FormatInt(id, 10)).Get(ctx)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}
