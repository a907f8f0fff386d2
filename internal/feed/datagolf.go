package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/models"
)

// LiveStat is one player's live scoring line for a tour.
type LiveStat struct {
	DGID   int64   `json:"dg_id"`
	Name   string  `json:"player_name"`
	Total  int     `json:"total"`
	Thru   *int    `json:"thru,omitempty"`
	Status string  `json:"status"`
	Odds   float64 `json:"win_odds,omitempty"`
}

// PlayerStatus maps the feed status string onto our status codes.
// Unknown statuses are treated as active.
func (s LiveStat) PlayerStatus() models.PlayerStatus {
	switch s.Status {
	case "wd", "withdrawn":
		return models.StatusWithdrawn
	case "cut", "mc":
		return models.StatusCut
	case "dq", "dsq":
		return models.StatusDisqualified
	default:
		return models.StatusActive
	}
}

// FieldPlayer is one player in a tournament field with their round tee time.
type FieldPlayer struct {
	DGID    int64   `json:"dg_id"`
	Name    string  `json:"player_name"`
	Odds    float64 `json:"odds,omitempty"`
	TeeTime string  `json:"teetime,omitempty"` // "2006-01-02 15:04", feed-local
}

// RoundTeeTime parses the player's tee time; ok is false when the feed has
// not published one yet.
func (p FieldPlayer) RoundTeeTime() (time.Time, bool) {
	if p.TeeTime == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02 15:04", time.RFC3339} {
		if t, err := time.Parse(layout, p.TeeTime); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FieldUpdate is a tour's current tournament field and tee-time data.
type FieldUpdate struct {
	EventName    string        `json:"event_name"`
	EventID      string        `json:"event_id"`
	CurrentRound int           `json:"current_round"`
	Players      []FieldPlayer `json:"field"`
}

// HasPlayer reports whether the given feed id is present in the field.
func (f *FieldUpdate) HasPlayer(dgID int64) bool {
	for _, p := range f.Players {
		if p.DGID == dgID {
			return true
		}
	}
	return false
}

// Client is the Data Golf API client
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a new Data Golf API client with optimizations
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	// Create rate limiter (max 20 concurrent requests, burst of 20)
	rateLimiter := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		rateLimiter: rateLimiter,
		maxRetries:  3,
		retryDelay:  1 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a GET request to the Data Golf API with retry logic and rate limiting
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		// Rate limiting: acquire semaphore
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.rateLimiter:
		}

		body, done, err := c.doRequest(ctx, url, path, params, attempt)
		c.rateLimiter <- struct{}{}
		if done {
			return body, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// doRequest performs one attempt. done=false means the error is retryable
// and the attempt loop should continue.
func (c *Client) doRequest(ctx context.Context, url, path string, params map[string]string, attempt int) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, true, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GolfPools-Worker/1.0")

	// Add query parameters; the key rides along as a parameter per the feed's
	// auth scheme.
	q := req.URL.Query()
	for key, value := range params {
		q.Add(key, value)
	}
	q.Add("key", c.apiKey)
	q.Add("file_format", "json")
	req.URL.RawQuery = q.Encode()

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Int("attempt", attempt+1).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retryable
		return nil, attempt >= c.maxRetries, &TemporaryError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, attempt >= c.maxRetries, &TemporaryError{Endpoint: path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("size", len(body)).
			Msg("API request successful")
		return body, true, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Rate limits and server-side failures are retryable
		err := &TemporaryError{StatusCode: resp.StatusCode, Endpoint: path}
		if attempt < c.maxRetries {
			log.Warn().
				Str("url", url).
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Msg("Received retryable error, will retry")
			return nil, false, err
		}
		return nil, true, err

	default:
		// Any other 4xx aborts the caller's cycle, never retried
		return nil, true, &PermanentError{StatusCode: resp.StatusCode, Endpoint: path, Body: string(body)}
	}
}

// LiveStats fetches live tournament stats for a tour. An empty slice with a
// nil error means the feed has no data for the tour right now.
func (c *Client) LiveStats(ctx context.Context, tour string) ([]LiveStat, error) {
	body, err := c.get(ctx, "preds/live-tournament-stats", map[string]string{
		"tour":    tour,
		"stats":   "total",
		"display": "value",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live stats: %w", err)
	}

	var payload struct {
		LiveStats []LiveStat `json:"live_stats"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed payload is "no data", not an error: the next cycle will
		// see a fresh response.
		log.Warn().Err(err).Str("tour", tour).Msg("Malformed live stats payload, treating as no data")
		return nil, nil
	}

	return payload.LiveStats, nil
}

// FieldUpdates fetches the current tournament field and tee times for a tour.
func (c *Client) FieldUpdates(ctx context.Context, tour string) (*FieldUpdate, error) {
	body, err := c.get(ctx, "field-updates", map[string]string{
		"tour": tour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch field updates: %w", err)
	}

	var update FieldUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		log.Warn().Err(err).Str("tour", tour).Msg("Malformed field payload, treating as no data")
		return nil, nil
	}

	return &update, nil
}
