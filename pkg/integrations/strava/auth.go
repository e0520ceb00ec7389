package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/pacelap/server/pkg/types"
)

// Exchange trades an authorization code for tokens and builds the athlete
// record from the athlete summary embedded in Strava's token response. The
// caller assigns the session ID before persisting.
func Exchange(ctx context.Context, oauthCfg *oauth2.Config, code string) (*types.Athlete, error) {
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	raw := token.Extra("athlete")
	if raw == nil {
		return nil, fmt.Errorf("token response has no athlete summary")
	}
	// Round trip through JSON rather than walking the untyped map.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("athlete summary: %w", err)
	}
	var summary tokenAthlete
	if err := json.Unmarshal(buf, &summary); err != nil {
		return nil, fmt.Errorf("athlete summary: %w", err)
	}
	if summary.ID == 0 {
		return nil, fmt.Errorf("athlete summary has no id")
	}

	username := summary.Username
	if username == "" {
		username = strings.TrimSpace(summary.FirstName + " " + summary.LastName)
	}

	return &types.Athlete{
		ID:             summary.ID,
		ExpiresAt:      token.Expiry.Unix(),
		RefreshToken:   token.RefreshToken,
		AccessToken:    token.AccessToken,
		Username:       username,
		AvatarSmallURL: summary.ProfileMedium,
		AvatarURL:      summary.Profile,
	}, nil
}
