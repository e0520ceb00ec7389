package api

import (
	"time"

	"github.com/pacelap/server/pkg/types"
)

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	SessionID      string `json:"sessionId"`
	AthleteID      int64  `json:"athleteId"`
	Username       string `json:"username"`
	AvatarSmallURL string `json:"avatarSmallUrl"`
	AvatarURL      string `json:"avatarUrl"`
	IsAdmin        bool   `json:"isAdmin"`
}

type sportResponse struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type challengeSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	GoalType string          `json:"goalType"`
	Goal     string          `json:"goal"`
	RawGoal  string          `json:"rawGoal"`
	State    string          `json:"state"`
	Sports   []sportResponse `json:"sports"`
	Athletes int             `json:"athletes"`
	Joined   bool            `json:"joined"`
}

type challengesResponse struct {
	Current  []challengeSummary `json:"current"`
	Upcoming []challengeSummary `json:"upcoming"`
	Past     []challengeSummary `json:"past"`
}

type leaderboardRow struct {
	Rank      int    `json:"rank"`
	AthleteID int64  `json:"athleteId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Score     string `json:"score"`
	Percent   int    `json:"percent"`
	IsMe      bool   `json:"isMe"`
}

type challengeDetail struct {
	challengeSummary
	ScoreTitle  string           `json:"scoreTitle"`
	Leaderboard []leaderboardRow `json:"leaderboard"`
}

type activityBreakdownRow struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Icon           string    `json:"icon"`
	StartDateLocal time.Time `json:"startDateLocal"`
	Date           string    `json:"date"`
	Distance       string    `json:"distance"`
	MovingTime     string    `json:"movingTime"`
	Calories       string    `json:"calories"`
	Score          string    `json:"score"`
}

type athleteBreakdown struct {
	AthleteID  int64                  `json:"athleteId"`
	Name       string                 `json:"name"`
	AvatarURL  string                 `json:"avatarUrl"`
	Score      string                 `json:"score"`
	Percent    int                    `json:"percent"`
	Activities []activityBreakdownRow `json:"activities"`
}

type syncResponse struct {
	SyncID string `json:"syncId"`
}

func toSummary(c *types.Challenge, viewerID int64) challengeSummary {
	sports := make([]sportResponse, len(c.ActivityTypes))
	for i, t := range c.ActivityTypes {
		sports[i] = sportResponse{Name: string(t), Icon: t.Icon()}
	}
	_, joined := c.AthletesStats[viewerID]
	return challengeSummary{
		ID:       c.ID,
		Name:     c.Name,
		From:     c.From,
		To:       c.To,
		GoalType: c.GoalType.JSONName(),
		Goal:     c.GoalType.DisplayGoal(c),
		RawGoal:  c.GoalType.RawGoal(c),
		State:    string(c.State),
		Sports:   sports,
		Athletes: len(c.AthletesStats),
		Joined:   joined,
	}
}
