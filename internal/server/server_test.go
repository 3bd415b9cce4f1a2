package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/feedcache/internal/database"
	"github.com/bryan-buckman/feedcache/internal/engine"
	"github.com/bryan-buckman/feedcache/internal/model"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticFetcher serves a fixed entry for every route.
type staticFetcher struct{}

func (staticFetcher) FetchEntries(_ context.Context, route string) ([]model.RawEntry, error) {
	return []model.RawEntry{{
		GuidOrLink:  route + "/post-1",
		Title:       "Post one",
		Summary:     "Summary one",
		URL:         "https://example.com" + route + "/post-1",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "feedcache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	eng := engine.New(db, staticFetcher{}, 2, zerolog.Nop())
	return New(eng, "local", zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAddAndListSources(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sources", map[string]any{"route": "/tech/news"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[model.Source](t, rec)
	assert.Equal(t, "/tech/news", created.Route)
	assert.Equal(t, "tech / news", created.DisplayName)

	rec = doJSON(t, h, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decodeBody[[]model.Source](t, rec)
	require.Len(t, sources, 1)
	assert.Equal(t, created.ID, sources[0].ID)
}

func TestAddSourceValidation(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sources", map[string]any{"route": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "Route or RSS URL is required", body["error"])
}

func TestUserHeaderScopesData(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"route": "/tech/news"}))
	req := httptest.NewRequest(http.MethodPost, "/api/sources", &buf)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Default user sees nothing.
	rec = doJSON(t, h, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]model.Source](t, rec))
}

func TestRefreshAndEntriesView(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sources", map[string]any{"route": "/tech/news"})
	require.Equal(t, http.StatusCreated, rec.Code)
	src := decodeBody[model.Source](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/sources/"+src.ID+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[model.RefreshResult](t, rec)
	assert.True(t, res.OK)
	assert.False(t, res.Stale)

	rec = doJSON(t, h, http.MethodGet, "/api/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]model.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Post one", entries[0].Title)

	rec = doJSON(t, h, http.MethodGet, "/api/entries/days", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buckets := decodeBody[[]model.DayBucket](t, rec)
	require.Len(t, buckets, 1)
	assert.Len(t, buckets[0].Entries, 1)
}

func TestMarkReadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/read-states", map[string]any{
		"entry_ids": []string{"/tech/news::g-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	states := decodeBody[[]model.ReadState](t, rec)
	require.Len(t, states, 1)
	assert.Equal(t, "/tech/news::g-1", states[0].EntryID)

	rec = doJSON(t, h, http.MethodGet, "/api/read-states", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.ReadState](t, rec), 1)
}

func TestGroupLifecycle(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/groups", map[string]any{"name": "Tech"})
	require.Equal(t, http.StatusCreated, rec.Code)
	group := decodeBody[model.SourceGroup](t, rec)

	rec = doJSON(t, h, http.MethodPut, "/api/groups/"+group.ID, map[string]any{"name": "Technology"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Technology", decodeBody[model.SourceGroup](t, rec).Name)

	rec = doJSON(t, h, http.MethodDelete, "/api/groups/"+group.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]model.SourceGroup](t, rec))
}

func TestInvalidBodyRejected(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sources", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
