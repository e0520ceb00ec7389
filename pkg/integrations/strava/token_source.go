package strava

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	shared "github.com/pacelap/server/pkg"
)

// TokenURL is Strava's OAuth token endpoint.
const TokenURL = "https://www.strava.com/oauth/token"

// expiryMargin triggers a proactive refresh; Strava tokens live six hours.
const expiryMargin = 60 * time.Second

// OAuthConfig builds the oauth2 configuration shared by login exchange and
// token refresh.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Token represents the credentials persisted for an athlete.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

func (t *Token) valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(expiryMargin).Unix() < t.ExpiresAt
}

// TokenSource returns a valid token for one athlete, refreshing through
// Strava when needed. It is safe for concurrent use: only one goroutine
// performs the refresh, the rest wait and reload the stored result.
type TokenSource struct {
	DB        shared.Database
	OAuth     *oauth2.Config
	AthleteID int64
	Logger    *slog.Logger

	mu sync.Mutex
}

// Token reads the stored token and refreshes it when it is about to expire.
func (s *TokenSource) Token(ctx context.Context) (*Token, error) {
	token, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if token.valid(time.Now()) {
		return token, nil
	}
	return s.ForceRefresh(ctx, token.AccessToken)
}

// ForceRefresh exchanges the refresh token for new credentials and persists
// them. staleAccessToken is the token that just failed: when the stored token
// already differs, another goroutine has refreshed in the meantime and the
// stored one is returned as is.
func (s *TokenSource) ForceRefresh(ctx context.Context, staleAccessToken string) (*Token, error) {
	if !s.mu.TryLock() {
		// A refresh is in flight. Wait for it, then pick up its result.
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.load(ctx)
	}
	defer s.mu.Unlock()

	token, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if token.AccessToken != staleAccessToken {
		return token, nil
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("athlete %d has no refresh token", s.AthleteID)
	}

	if s.Logger != nil {
		s.Logger.Info("Refreshing access token", "athlete_id", s.AthleteID)
	}

	refreshed, err := s.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token for athlete %d: %w", s.AthleteID, err)
	}

	newToken := &Token{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    refreshed.Expiry.Unix(),
	}
	if newToken.RefreshToken == "" {
		newToken.RefreshToken = token.RefreshToken
	}

	err = s.DB.UpdateAthleteTokens(ctx, s.AthleteID, newToken.AccessToken, newToken.RefreshToken, newToken.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return newToken, nil
}

func (s *TokenSource) load(ctx context.Context) (*Token, error) {
	athlete, err := s.DB.GetAthlete(ctx, s.AthleteID)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken:  athlete.AccessToken,
		RefreshToken: athlete.RefreshToken,
		ExpiresAt:    athlete.ExpiresAt,
	}, nil
}
