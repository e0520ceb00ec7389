// Package strava talks to the Strava v3 API on behalf of one athlete,
// handling token refresh and re-auth transparently.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	shared "github.com/pacelap/server/pkg"
	httputil "github.com/pacelap/server/pkg/infrastructure/http"
	"github.com/pacelap/server/pkg/types"
)

const (
	// BaseURL is the Strava v3 API root.
	BaseURL = "https://www.strava.com/api/v3"

	// listPageSize is Strava's maximum per_page value.
	listPageSize = 200
)

// Client is scoped to a single athlete; construct one per sync operation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// Option customizes a Client, mainly for tests.
type Option func(*Client)

// WithBaseTransport swaps the underlying transport the authenticated
// round tripper delegates to.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport.(*Transport).Base = rt
	}
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// NewClient builds an athlete-scoped client. Tokens are read from and
// persisted to db as they refresh.
func NewClient(db shared.Database, clientID, clientSecret string, athleteID int64, logger *slog.Logger, opts ...Option) *Client {
	source := &TokenSource{
		DB:        db,
		OAuth:     OAuthConfig(clientID, clientSecret),
		AthleteID: athleteID,
		Logger:    logger,
	}
	c := &Client{
		httpClient: &http.Client{
			Transport: &Transport{Source: source, Logger: logger},
			Timeout:   2 * time.Minute,
		},
		baseURL: BaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if err := httputil.ErrorFromResponse(resp); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// ListActivities returns the athlete's activities with start date in
// (after, before), ordered by start date ascending. Records carry list-level
// detail only (ExtendedInfo false).
func (c *Client) ListActivities(ctx context.Context, after, before time.Time) ([]*types.Activity, error) {
	var all []*types.Activity
	for page := 1; ; page++ {
		query := url.Values{
			"after":    {strconv.FormatInt(after.Unix(), 10)},
			"before":   {strconv.FormatInt(before.Unix(), 10)},
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(listPageSize)},
		}
		var batch []summaryActivity
		if err := c.getJSON(ctx, "/athlete/activities", query, &batch); err != nil {
			return nil, err
		}
		for i := range batch {
			all = append(all, batch[i].toActivity(false))
		}
		if len(batch) < listPageSize {
			break
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].StartDate.Before(all[j].StartDate)
	})
	return all, nil
}

// GetActivity fetches full detail for one activity (ExtendedInfo true,
// calories included).
func (c *Client) GetActivity(ctx context.Context, id int64) (*types.Activity, error) {
	var detail detailedActivity
	if err := c.getJSON(ctx, "/activities/"+strconv.FormatInt(id, 10), nil, &detail); err != nil {
		return nil, err
	}
	return detail.toActivity(), nil
}
