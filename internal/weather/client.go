package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"garden_irrigation/internal/models"
)

var (
	// ErrMissingAPIKey is returned before any request when no key is configured.
	ErrMissingAPIKey = errors.New("weather api key not configured")
	// ErrUpstream wraps non-success responses.
	ErrUpstream = errors.New("weather api error")
	// ErrEmptyHistory is returned when a history response carries no day.
	ErrEmptyHistory = errors.New("weather history response has no day")
)

const maxBodyBytes = 1 << 20

// ClientConfig configures a weatherapi.com client.
type ClientConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      uint64
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// Client talks to weatherapi.com through a circuit breaker. Each call is
// retried with exponential backoff before it counts as a breaker failure.
type Client struct {
	cfg        ClientConfig
	http       *http.Client
	cb         *gobreaker.CircuitBreaker
	newBackOff func() backoff.BackOff
}

// NewClient builds a client. httpClient may be nil.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "weatherapi",
			Timeout: cfg.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
		}),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *Client) BreakerState() string { return c.cb.State().String() }

// Fetch returns current conditions and a days-long forecast for c.
func (c *Client) Fetch(ctx context.Context, coords models.Coordinates, days int) (Forecast, error) {
	q := url.Values{}
	q.Set("q", Query(coords))
	q.Set("days", strconv.Itoa(days))
	q.Set("aqi", "no")
	q.Set("alerts", "no")

	var resp apiResponse
	if err := c.call(ctx, "forecast.json", q, &resp); err != nil {
		return Forecast{}, err
	}
	return resp.toForecast(), nil
}

// History returns the observed day at date.
func (c *Client) History(ctx context.Context, coords models.Coordinates, date time.Time) (Day, error) {
	q := url.Values{}
	q.Set("q", Query(coords))
	q.Set("dt", date.Format(DateLayout))

	var resp apiResponse
	if err := c.call(ctx, "history.json", q, &resp); err != nil {
		return Day{}, err
	}
	f := resp.toForecast()
	if len(f.Days) == 0 {
		return Day{}, ErrEmptyHistory
	}
	return f.Days[0], nil
}

// Query formats coordinates the way the provider expects.
func Query(c models.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

func (c *Client) call(ctx context.Context, endpoint string, q url.Values, out *apiResponse) error {
	if c.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	q.Set("key", c.cfg.APIKey)
	target := c.cfg.BaseURL + "/" + endpoint + "?" + q.Encode()

	_, err := c.cb.Execute(func() (any, error) {
		bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
		return nil, backoff.Retry(func() error { return c.get(ctx, target, out) }, bo)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string, out *apiResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, apiErrorMessage(body, resp.StatusCode))
		// 4xx other than 429 will not improve on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode weather response: %w", err))
	}
	return nil
}

func apiErrorMessage(body []byte, status int) string {
	var e apiResponse
	if json.Unmarshal(body, &e) == nil && e.Error != nil {
		return e.Error.Message
	}
	return http.StatusText(status)
}
