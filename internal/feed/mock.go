package feed

import (
	"context"
	"regexp"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
)

var nonWordRe = regexp.MustCompile(`\W+`)

// MockRoutes is the production RouteFetcher for local routes: it
// synthesizes two deterministic placeholder entries per route so a
// route-backed source always has something to cache.
type MockRoutes struct{}

// NewMockRoutes creates the default local-route resolver.
func NewMockRoutes() *MockRoutes {
	return &MockRoutes{}
}

// FetchRoute returns the route's placeholder entries, stamped relative
// to the current time.
func (m *MockRoutes) FetchRoute(_ context.Context, route string) ([]model.RawEntry, error) {
	now := time.Now()
	base := nonWordRe.ReplaceAllString(route, "-")
	return []model.RawEntry{
		{
			GuidOrLink:  route + "/post-1",
			Title:       base + " update #1",
			Summary:     "Summary for " + route + " entry 1",
			URL:         "https://example.com" + route + "/post-1",
			PublishedAt: now.Add(-15 * time.Minute),
		},
		{
			GuidOrLink:  route + "/post-2",
			Title:       base + " update #2",
			Summary:     "Summary for " + route + " entry 2",
			URL:         "https://example.com" + route + "/post-2",
			PublishedAt: now.Add(-45 * time.Minute),
		},
	}, nil
}
