// Package api serves the client-facing REST surface: login, challenge
// browsing and membership, administration, and manual sync triggers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	shared "github.com/pacelap/server/pkg"
	"github.com/pacelap/server/pkg/bootstrap"
	"github.com/pacelap/server/pkg/coordinator"
	"github.com/pacelap/server/pkg/domain/aggregate"
	"github.com/pacelap/server/pkg/domain/challenge"
	"github.com/pacelap/server/pkg/framework"
	infrapubsub "github.com/pacelap/server/pkg/infrastructure/pubsub"
	"github.com/pacelap/server/pkg/integrations/strava"
	"github.com/pacelap/server/pkg/types"
)

type Handler struct {
	Service     *bootstrap.Service
	Events      *infrapubsub.Dispatcher
	Coordinator *coordinator.Coordinator

	// Exchange is swappable in tests.
	Exchange func(ctx context.Context, code string) (*types.Athlete, error)

	// Now is swappable in tests.
	Now func() time.Time
}

func New(svc *bootstrap.Service) *Handler {
	events := infrapubsub.NewDispatcher(svc.Pub)
	oauthCfg := strava.OAuthConfig(svc.Config.StravaClientID, svc.Config.StravaClientSecret)
	return &Handler{
		Service: svc,
		Events:  events,
		Coordinator: &coordinator.Coordinator{
			DB:     svc.DB,
			Events: events,
			Logger: bootstrap.NewLogger("api"),
		},
		Exchange: func(ctx context.Context, code string) (*types.Athlete, error) {
			return strava.Exchange(ctx, oauthCfg, code)
		},
		Now: time.Now,
	}
}

// Routes mounts every API operation on a fresh router.
func (h *Handler) Routes() chi.Router {
	svc := h.Service
	r := chi.NewRouter()

	r.Post("/login", framework.WrapHTTP("api-login", svc, h.login))

	r.Route("/challenges", func(r chi.Router) {
		r.Get("/", framework.WrapHTTP("api-challenges-list", svc, h.listChallenges))
		r.Post("/", framework.WrapHTTP("api-challenges-create", svc, h.createChallenge))
		r.Get("/{challengeID}", framework.WrapHTTP("api-challenge-detail", svc, h.getChallenge))
		r.Put("/{challengeID}", framework.WrapHTTP("api-challenge-edit", svc, h.editChallenge))
		r.Delete("/{challengeID}", framework.WrapHTTP("api-challenge-delete", svc, h.deleteChallenge))
		r.Post("/{challengeID}/join", framework.WrapHTTP("api-challenge-join", svc, h.joinChallenge))
		r.Post("/{challengeID}/leave", framework.WrapHTTP("api-challenge-leave", svc, h.leaveChallenge))
		r.Get("/{challengeID}/athletes/{athleteID}", framework.WrapHTTP("api-challenge-athlete", svc, h.athleteBreakdown))
	})

	r.Post("/sync", framework.WrapHTTP("api-sync", svc, h.syncSelf))
	r.Post("/sync/all", framework.WrapHTTP("api-sync-all", svc, h.syncAll))
	r.Post("/recalculate", framework.WrapHTTP("api-recalculate", svc, h.recalculate))

	return r
}

// login trades an authorization code for a session. The first login of an
// athlete kicks off a background sync so their history shows up without
// waiting for the next scheduled run.
func (h *Handler) login(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		return nil, framework.BadRequest(fmt.Errorf("authorization code is required"))
	}

	athlete, err := h.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("login exchange: %w", err)
	}
	if !h.Service.Config.AllowedAthletes[athlete.ID] {
		fw.Logger.Warn("Login from athlete outside the allowlist", "athlete_id", athlete.ID)
		return nil, framework.ErrNotAuthenticated
	}

	athlete.SessionID = uuid.NewString()
	existed, err := h.Service.DB.UpsertAthlete(ctx, athlete)
	if err != nil {
		return nil, fmt.Errorf("store athlete: %w", err)
	}
	if existed {
		// Keep the session the athlete already has instead of invalidating
		// their other devices.
		stored, err := h.Service.DB.GetAthlete(ctx, athlete.ID)
		if err != nil {
			return nil, fmt.Errorf("reload athlete: %w", err)
		}
		athlete.SessionID = stored.SessionID
	} else {
		if err := h.Service.DB.RotateAthleteSession(ctx, athlete.ID, athlete.SessionID); err != nil {
			return nil, fmt.Errorf("assign session: %w", err)
		}
		fw.Logger.Info("First login, starting background sync", "athlete_id", athlete.ID)
		bg := context.WithoutCancel(ctx)
		go func() {
			if _, err := h.Coordinator.StartSyncAthlete(bg, athlete.ID); err != nil {
				fw.Logger.Error("First-login sync failed to start", "athlete_id", athlete.ID, "error", err)
			}
		}()
	}

	return &loginResponse{
		SessionID:      athlete.SessionID,
		AthleteID:      athlete.ID,
		Username:       athlete.Username,
		AvatarSmallURL: athlete.AvatarSmallURL,
		AvatarURL:      athlete.AvatarURL,
		IsAdmin:        athlete.ID == h.Service.Config.OwnerAthleteID,
	}, nil
}

// listChallenges groups challenges by lifecycle state. Current and upcoming
// sort by start ascending, past by end descending so the freshest result
// leads.
func (h *Handler) listChallenges(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}

	challenges, err := h.Service.DB.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}

	now := h.Now()
	resp := challengesResponse{
		Current:  []challengeSummary{},
		Upcoming: []challengeSummary{},
		Past:     []challengeSummary{},
	}
	for _, c := range challenges {
		c.State = types.StateAt(now, c.From, c.To)
		summary := toSummary(c, viewer.ID)
		switch c.State {
		case types.ChallengeCurrent:
			resp.Current = append(resp.Current, summary)
		case types.ChallengeUpcoming:
			resp.Upcoming = append(resp.Upcoming, summary)
		default:
			resp.Past = append(resp.Past, summary)
		}
	}
	sort.Slice(resp.Current, func(i, j int) bool { return resp.Current[i].From.Before(resp.Current[j].From) })
	sort.Slice(resp.Upcoming, func(i, j int) bool { return resp.Upcoming[i].From.Before(resp.Upcoming[j].From) })
	sort.Slice(resp.Past, func(i, j int) bool { return resp.Past[i].To.After(resp.Past[j].To) })

	return &resp, nil
}

func (h *Handler) loadChallenge(ctx context.Context, r *http.Request) (*types.Challenge, error) {
	return h.Service.DB.GetChallenge(ctx, chi.URLParam(r, "challengeID"))
}

func (h *Handler) getChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	c, err := h.loadChallenge(ctx, r)
	if err != nil {
		return nil, err
	}

	rows := make([]leaderboardRow, 0, len(c.AthletesStats))
	for i, st := range aggregate.Leaderboard(c) {
		rows = append(rows, leaderboardRow{
			Rank:      i + 1,
			AthleteID: st.AthleteID,
			Name:      st.Name,
			AvatarURL: st.AvatarURL,
			Score:     c.GoalType.FormatScore(st),
			Percent:   c.GoalType.PercentOfGoal(c, st),
			IsMe:      st.AthleteID == viewer.ID,
		})
	}

	return &challengeDetail{
		challengeSummary: toSummary(c, viewer.ID),
		ScoreTitle:       c.GoalType.ScoreTitle(),
		Leaderboard:      rows,
	}, nil
}

func (h *Handler) createChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	if err := framework.RequireAdmin(viewer, h.Service); err != nil {
		return nil, err
	}

	var payload challenge.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, framework.BadRequest(fmt.Errorf("decode payload: %w", err))
	}
	c, err := challenge.Parse(&payload)
	if err != nil {
		return nil, framework.BadRequest(err)
	}

	c.ID = uuid.NewString()
	c.State = types.StateAt(h.Now(), c.From, c.To)
	if err := h.Service.DB.InsertChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	fw.Logger.Info("Challenge created", "challenge_id", c.ID, "name", c.Name)
	return toSummary(c, viewer.ID), nil
}

// editChallenge replaces the challenge definition but keeps membership and
// stats; a recalculation follows so scores match the new rules.
func (h *Handler) editChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	if err := framework.RequireAdmin(viewer, h.Service); err != nil {
		return nil, err
	}
	existing, err := h.loadChallenge(ctx, r)
	if err != nil {
		return nil, err
	}

	var payload challenge.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, framework.BadRequest(fmt.Errorf("decode payload: %w", err))
	}
	c, err := challenge.Parse(&payload)
	if err != nil {
		return nil, framework.BadRequest(err)
	}

	c.ID = existing.ID
	c.AthletesStats = existing.AthletesStats
	c.State = types.StateAt(h.Now(), c.From, c.To)
	if err := h.Service.DB.UpdateChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("update challenge: %w", err)
	}

	ev := types.SyncAthleteEvent{SyncID: shared.AlwaysRecalculate}
	if err := h.Events.Recalculate(ctx, ev); err != nil {
		return nil, fmt.Errorf("emit recalculate: %w", err)
	}
	fw.Logger.Info("Challenge updated", "challenge_id", c.ID)
	return toSummary(c, viewer.ID), nil
}

func (h *Handler) deleteChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	if err := framework.RequireAdmin(viewer, h.Service); err != nil {
		return nil, err
	}

	id := chi.URLParam(r, "challengeID")
	if err := h.Service.DB.DeleteChallenge(ctx, id); err != nil {
		return nil, fmt.Errorf("delete challenge: %w", err)
	}
	fw.Logger.Info("Challenge deleted", "challenge_id", id)
	return nil, nil
}

// joinChallenge is idempotent: joining twice leaves the existing stats row
// untouched.
func (h *Handler) joinChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	c, err := h.loadChallenge(ctx, r)
	if err != nil {
		return nil, err
	}

	stats := types.NewZeroStats(viewer.ID, viewer.Username, viewer.AvatarURL)
	if err := h.Service.DB.JoinChallenge(ctx, c.ID, stats); err != nil {
		return nil, fmt.Errorf("join challenge: %w", err)
	}

	// Backfill the new member's score from already mirrored activities.
	ev := types.SyncAthleteEvent{AthleteID: viewer.ID, SyncID: shared.AlwaysRecalculate}
	if err := h.Events.Recalculate(ctx, ev); err != nil {
		return nil, fmt.Errorf("emit recalculate: %w", err)
	}
	fw.Logger.Info("Athlete joined challenge", "challenge_id", c.ID, "athlete_id", viewer.ID)
	return nil, nil
}

func (h *Handler) leaveChallenge(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	c, err := h.loadChallenge(ctx, r)
	if err != nil {
		return nil, err
	}

	if err := h.Service.DB.LeaveChallenge(ctx, c.ID, viewer.ID); err != nil {
		return nil, fmt.Errorf("leave challenge: %w", err)
	}
	fw.Logger.Info("Athlete left challenge", "challenge_id", c.ID, "athlete_id", viewer.ID)
	return nil, nil
}

// athleteBreakdown lists the activities behind one athlete's score.
func (h *Handler) athleteBreakdown(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	if _, err := framework.Authenticate(ctx, r, h.Service); err != nil {
		return nil, err
	}
	c, err := h.loadChallenge(ctx, r)
	if err != nil {
		return nil, err
	}

	athleteID, err := strconv.ParseInt(chi.URLParam(r, "athleteID"), 10, 64)
	if err != nil {
		return nil, framework.BadRequest(fmt.Errorf("bad athlete id"))
	}
	st, ok := c.AthletesStats[athleteID]
	if !ok {
		return nil, &shared.ErrNotFound{Collection: shared.CollectionChallenges, Key: chi.URLParam(r, "athleteID")}
	}

	// Newest first.
	activities := make([]types.ActivitySummary, len(st.Activities))
	copy(activities, st.Activities)
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].StartDateLocal.After(activities[j].StartDateLocal)
	})

	rows := make([]activityBreakdownRow, len(activities))
	for i, a := range activities {
		rows[i] = activityBreakdownRow{
			ID:             a.ID,
			Name:           a.Name,
			Type:           string(a.Type),
			Icon:           a.Type.Icon(),
			StartDateLocal: a.StartDateLocal,
			Date:           a.StartDateLocal.Format("Mon, 2 Jan"),
			Distance:       fmt.Sprintf("%dm", int(a.Distance)),
			MovingTime:     types.FormatDuration(time.Duration(a.MovingTime) * time.Second),
			Calories:       fmt.Sprintf("%dCal", int(a.KiloCalories)),
			Score:          c.GoalType.FormatScore(summaryStats(a)),
		}
	}
	return &athleteBreakdown{
		AthleteID:  st.AthleteID,
		Name:       st.Name,
		AvatarURL:  st.AvatarURL,
		Score:      c.GoalType.FormatScore(st),
		Percent:    c.GoalType.PercentOfGoal(c, st),
		Activities: rows,
	}, nil
}

// summaryStats lifts one activity into a stats value so the score formatter
// can price it on its own.
func summaryStats(a types.ActivitySummary) *types.AthleteChallengeStats {
	return &types.AthleteChallengeStats{
		ActivityCount:     1,
		TotalTime:         time.Duration(a.ElapsedTime) * time.Second,
		TotalMovingTime:   time.Duration(a.MovingTime) * time.Second,
		TotalKiloJoules:   a.KiloJoules,
		TotalKiloCalories: a.KiloCalories,
		TotalDistance:     a.Distance,
	}
}

func (h *Handler) syncSelf(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	syncID, err := h.Coordinator.StartSyncAthlete(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("start sync: %w", err)
	}
	return &syncResponse{SyncID: syncID}, nil
}

func (h *Handler) syncAll(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	if err := framework.RequireAdmin(viewer, h.Service); err != nil {
		return nil, err
	}
	syncID, err := h.Coordinator.StartSyncAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("start sync: %w", err)
	}
	return &syncResponse{SyncID: syncID}, nil
}

// recalculate refreshes lifecycle states and rebuilds every leaderboard.
func (h *Handler) recalculate(ctx context.Context, r *http.Request, fw *framework.Context) (interface{}, error) {
	viewer, err := framework.Authenticate(ctx, r, h.Service)
	if err != nil {
		return nil, err
	}
	if err := framework.RequireAdmin(viewer, h.Service); err != nil {
		return nil, err
	}
	if err := h.Coordinator.UpdateAllStates(ctx); err != nil {
		return nil, err
	}
	if err := h.Coordinator.RecalculateAll(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
