package feed

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/rs/zerolog"
)

// Fetcher resolves a source route into raw entries. The engine depends
// on this interface so tests can substitute controllable doubles.
type Fetcher interface {
	FetchEntries(ctx context.Context, route string) ([]model.RawEntry, error)
}

// RouteFetcher resolves local (non-URL) routes. The production default
// synthesizes placeholder entries; tests key failures by route string.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, route string) ([]model.RawEntry, error)
}

// Client fetches feeds over HTTP and delegates local routes to a
// RouteFetcher.
type Client struct {
	http   *http.Client
	routes RouteFetcher
	log    zerolog.Logger
}

// NewClient creates a feed client. Local routes resolve through the
// given RouteFetcher.
func NewClient(routes RouteFetcher, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		routes: routes,
		log:    logger.With().Str("component", "feed").Logger(),
	}
}

// FetchEntries issues a plain GET for URL routes (no caching headers,
// no auth) and requires a 2xx response; anything the route fetcher or
// parser rejects comes back as FetchError or ParseError.
func (c *Client) FetchEntries(ctx context.Context, route string) ([]model.RawEntry, error) {
	if !LooksLikeURL(route) {
		return c.routes.FetchRoute(ctx, route)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route, nil)
	if err != nil {
		return nil, &model.FetchError{Route: route, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.FetchError{Route: route, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.FetchError{Route: route, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Route: route, Err: err}
	}

	entries, err := ParseFeed(string(body), route)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("route", route).Int("entries", len(entries)).Msg("fetched feed")
	return entries, nil
}
