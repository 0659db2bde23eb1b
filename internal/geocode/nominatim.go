// Package geocode resolves postal addresses through a Nominatim-compatible
// search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// ErrAddressNotFound is returned when the service has no match. It is not retried.
var ErrAddressNotFound = errors.New("address not found")

type Options struct {
	BaseURL    string
	UserAgent  string
	MaxRetries uint64
	// Interval spaces attempts; the public Nominatim policy is one request per second.
	Interval   time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is created once at startup and shared by every request.
type Client struct {
	base       *url.URL
	userAgent  string
	maxRetries uint64
	interval   time.Duration
	http       *http.Client
	log        *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid geocoder url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		return nil, errors.New("geocoder user agent is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:       base,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		interval:   interval,
		http:       httpClient,
		log:        logger,
	}, nil
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the best match for address. Transient failures are retried
// at most MaxRetries times.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	var coords domain.Coordinates
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), c.maxRetries),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		coords, err = c.lookup(ctx, address)
		return err
	}, policy, func(err error, next time.Duration) {
		c.log.WarnContext(ctx, "geocode attempt failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", next),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	return coords, nil
}

func (c *Client) lookup(ctx context.Context, address string) (domain.Coordinates, error) {
	u := c.base.JoinPath("search")
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Coordinates{}, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Coordinates{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.Coordinates{}, fmt.Errorf("geocoder returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Coordinates{}, backoff.Permanent(fmt.Errorf("geocoder returned %d", resp.StatusCode))
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(places) == 0 {
		return domain.Coordinates{}, backoff.Permanent(ErrAddressNotFound)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, backoff.Permanent(fmt.Errorf("bad latitude %q", places[0].Lat))
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, backoff.Permanent(fmt.Errorf("bad longitude %q", places[0].Lon))
	}
	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}
