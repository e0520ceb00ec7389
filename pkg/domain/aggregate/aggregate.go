// Package aggregate recomputes per-athlete challenge statistics from the
// locally mirrored activities. It is pure: callers load the inputs and
// persist the result.
package aggregate

import (
	"sort"
	"time"

	"github.com/pacelap/server/pkg/types"
)

// Window returns the local-time bounds the challenge admits activities in:
// StartDateLocal in [from, before). The upper bound is midnight after the
// challenge's last day, so the whole final day counts.
func Window(c *types.Challenge) (from, before time.Time) {
	from = c.From
	last := c.To
	before = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, last.Location()).AddDate(0, 0, 1)
	return from, before
}

// Matches reports whether a counts toward the challenge for one of the
// current members.
func Matches(c *types.Challenge, a *types.Activity) bool {
	if _, member := c.AthletesStats[a.AthleteID]; !member {
		return false
	}
	from, before := Window(c)
	if a.StartDateLocal.Before(from) || !a.StartDateLocal.Before(before) {
		return false
	}
	return c.AllowsType(a.Type)
}

// Stats rebuilds the challenge's derived statistics from activities.
// Membership is preserved: every athlete present in the old stats map gets
// an entry, zeroed when nothing matched, so joins survive recalculation.
// Display fields (name, avatar) are refreshed from athletes when present.
func Stats(c *types.Challenge, activities []*types.Activity, athletes []*types.Athlete) map[int64]*types.AthleteChallengeStats {
	profiles := make(map[int64]*types.Athlete, len(athletes))
	for _, a := range athletes {
		profiles[a.ID] = a
	}

	out := make(map[int64]*types.AthleteChallengeStats, len(c.AthletesStats))
	for id, old := range c.AthletesStats {
		name, avatar := old.Name, old.AvatarURL
		if p, ok := profiles[id]; ok {
			name, avatar = p.Username, p.AvatarURL
		}
		out[id] = types.NewZeroStats(id, name, avatar)
	}

	for _, a := range activities {
		if !Matches(c, a) {
			continue
		}
		st := out[a.AthleteID]
		st.ActivityCount++
		st.TotalTime += time.Duration(a.ElapsedTime) * time.Second
		st.TotalMovingTime += time.Duration(a.MovingTime) * time.Second
		st.TotalKiloJoules += a.KiloJoules
		st.TotalKiloCalories += a.KiloCalories
		st.TotalDistance += a.Distance
		st.Activities = append(st.Activities, a.Summary())
	}

	for _, st := range out {
		sort.Slice(st.Activities, func(i, j int) bool {
			return st.Activities[i].StartDateLocal.Before(st.Activities[j].StartDateLocal)
		})
	}
	return out
}

// Leaderboard orders stats by score descending. Ties keep a stable order by
// athlete ID so repeated renders don't shuffle equal rows.
func Leaderboard(c *types.Challenge) []*types.AthleteChallengeStats {
	rows := make([]*types.AthleteChallengeStats, 0, len(c.AthletesStats))
	for _, st := range c.AthletesStats {
		rows = append(rows, st)
	}
	sort.Slice(rows, func(i, j int) bool {
		si, sj := c.GoalType.Score(rows[i]), c.GoalType.Score(rows[j])
		if si != sj {
			return si > sj
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})
	return rows
}
