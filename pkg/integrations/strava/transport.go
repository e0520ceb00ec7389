package strava

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Transport authenticates requests with the athlete's access token and
// retries once after a 401 with a force-refreshed token. A second 401 means
// the grant itself is dead: the athlete's session is rotated so stale
// browser sessions stop resolving, forcing a fresh login.
type Transport struct {
	Source *TokenSource
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("strava: cannot get token: %w", err)
	}

	req2 := cloneRequest(req)
	req2.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if t.Logger != nil {
		t.Logger.Warn("Got 401 from Strava, forcing token refresh",
			"athlete_id", t.Source.AthleteID, "url", req.URL.Path)
	}

	token, err = t.Source.ForceRefresh(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("strava: force refresh failed: %w", err)
	}

	req2.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err = base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if rotateErr := t.Source.DB.RotateAthleteSession(ctx, t.Source.AthleteID, uuid.NewString()); rotateErr != nil {
		if t.Logger != nil {
			t.Logger.Error("Session rotation failed", "athlete_id", t.Source.AthleteID, "error", rotateErr)
		}
	}
	// Hand the 401 back to the caller so the error it builds carries
	// Strava's response body.
	return resp, nil
}

// cloneRequest returns a shallow copy of r with a deep-copied header map.
func cloneRequest(r *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}
