// Package challenge validates challenge write payloads and builds the
// stored representation.
package challenge

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pacelap/server/pkg/types"
)

// ErrInvalidPayload marks validation failures; handlers map it to a 400.
var ErrInvalidPayload = errors.New("invalid challenge payload")

// Payload is the challenge create/edit request body. Goal is a string so
// time goals ("26:00:00") and numeric goals ("250.5") share one field.
type Payload struct {
	Name          string    `json:"name"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	GoalType      string    `json:"goalType"`
	Goal          string    `json:"goal"`
	ActivityTypes []string  `json:"activityTypes"`
}

// Parse validates p and returns the challenge it describes. ID, State and
// AthletesStats are left for the caller to fill in.
func Parse(p *Payload) (*types.Challenge, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPayload)
	}
	if p.From.IsZero() || p.To.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidPayload)
	}
	if p.To.Before(p.From) {
		return nil, fmt.Errorf("%w: to %s precedes from %s", ErrInvalidPayload,
			p.To.Format(time.DateOnly), p.From.Format(time.DateOnly))
	}

	goalType, err := types.ParseGoalType(p.GoalType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if len(p.ActivityTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one activity type is required", ErrInvalidPayload)
	}
	activityTypes := make([]types.ActivityType, len(p.ActivityTypes))
	for i, s := range p.ActivityTypes {
		t, err := types.ParseActivityType(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		activityTypes[i] = t
	}

	c := &types.Challenge{
		Name:          p.Name,
		From:          p.From,
		To:            p.To,
		GoalType:      goalType,
		ActivityTypes: activityTypes,
		AthletesStats: map[int64]*types.AthleteChallengeStats{},
	}

	if goalType.IsTimeGoal() {
		d, err := types.ParseTimeGoal(p.Goal)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: time goal must be positive", ErrInvalidPayload)
		}
		c.TimeGoal = &d
	} else {
		goal, err := strconv.ParseFloat(p.Goal, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: numeric goal %q: %v", ErrInvalidPayload, p.Goal, err)
		}
		if goal <= 0 || math.IsInf(goal, 0) || math.IsNaN(goal) {
			return nil, fmt.Errorf("%w: numeric goal must be positive and finite", ErrInvalidPayload)
		}
		c.NumericGoal = &goal
	}

	return c, nil
}
