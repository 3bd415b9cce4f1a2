package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryan-buckman/feedcache/internal/database"
	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

// stubFetcher replaces the feed adapter in tests: entries and failures
// are keyed by route string.
type stubFetcher struct {
	mu      sync.Mutex
	entries map[string][]model.RawEntry
	failing map[string]bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		entries: make(map[string][]model.RawEntry),
		failing: make(map[string]bool),
	}
}

func (f *stubFetcher) setEntries(route string, entries []model.RawEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[route] = entries
}

func (f *stubFetcher) setFailure(route string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[route] = fail
}

func (f *stubFetcher) FetchEntries(_ context.Context, route string) ([]model.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[route] {
		return nil, errors.New("Mock fetch failed")
	}
	return f.entries[route], nil
}

func newTestEngine(t *testing.T) (*Engine, *stubFetcher) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "feedcache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fetcher := newStubFetcher()
	return New(db, fetcher, 4, zerolog.Nop()), fetcher
}

func rawEntry(guid, title string, publishedAt time.Time) model.RawEntry {
	return model.RawEntry{
		GuidOrLink:  guid,
		Title:       title,
		Summary:     "summary of " + title,
		URL:         "https://example.com/" + guid,
		PublishedAt: publishedAt,
	}
}

func addTestSource(t *testing.T, e *Engine, route string) *model.Source {
	t.Helper()
	src, err := e.AddSource(context.Background(), testUser, route, "", nil)
	require.NoError(t, err)
	return src
}
