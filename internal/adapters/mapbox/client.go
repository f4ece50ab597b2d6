// internal/adapters/mapbox/client.go
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"staysense/internal/adapters/observability"
	"staysense/internal/domain"
)

// Client is a forward geocoder backed by the Mapbox Geocoding v5 API.
type Client struct {
	base  string
	hc    *http.Client
	token string
	rl    *rate.Limiter
}

func New(base, token string, rps int) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("mapbox access token is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: 10 * time.Second},
		token: token,
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrNoMatch      = errors.New("mapbox: no feature matched the query")
	ErrUnauthorized = errors.New("mapbox: unauthorized")
	ErrRateLimited  = errors.New("mapbox: rate limited")
)

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Forward geocodes address with limit=1 and returns the first feature's point.
// Failures are returned once; there is no retry.
func (c *Client) Forward(ctx context.Context, address string) (domain.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Point{}, &domain.ValidationError{Fields: map[string]string{"address": "is required"}}
	}
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Point{}, err
	}

	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		c.base,
		url.PathEscape(address),
		url.Values{"access_token": {c.token}, "limit": {"1"}}.Encode(),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Point{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "staysense/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("mapbox", "forward", 0, time.Since(start))
		if ctx.Err() != nil {
			return domain.Point{}, ctx.Err()
		}
		return domain.Point{}, domain.Upstream("mapbox", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("mapbox", "forward", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Point{}, domain.Upstream("mapbox", ErrUnauthorized)
	case http.StatusTooManyRequests:
		return domain.Point{}, domain.Upstream("mapbox", ErrRateLimited)
	default:
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Point{}, domain.Upstream("mapbox", fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.Point{}, domain.Upstream("mapbox", fmt.Errorf("decode: %w", err))
	}
	if len(fc.Features) == 0 || len(fc.Features[0].Geometry.Coordinates) < 2 {
		return domain.Point{}, domain.Upstream("mapbox", ErrNoMatch)
	}
	xy := fc.Features[0].Geometry.Coordinates
	return domain.Point{Lon: xy[0], Lat: xy[1]}, nil
}
