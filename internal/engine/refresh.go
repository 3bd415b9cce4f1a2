package engine

import (
	"context"
	"sync"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/samber/lo"
)

// sourceLocks serializes refreshes per source id so two refreshes of
// the same source never interleave their replace transactions.
type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSourceLocks() sourceLocks {
	return sourceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *sourceLocks) forSource(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// RefreshSource fetches one source and commits the result.
//
// On fetch or parse failure the error is recorded on the source and
// the policy applies: serve stale when cached entries exist, hard-fail
// only when the cache is empty. Fetch errors never escape as errors.
func (e *Engine) RefreshSource(ctx context.Context, userID, sourceID string) model.RefreshResult {
	lock := e.locks.forSource(sourceID)
	lock.Lock()
	defer lock.Unlock()

	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return model.RefreshResult{Error: err.Error()}
	}
	if src == nil || src.UserID != userID || src.Deleted() || !src.Enabled {
		return model.RefreshResult{Error: "Source is unavailable"}
	}

	existing, err := e.store.GetEntriesBySource(ctx, sourceID)
	if err != nil {
		return model.RefreshResult{Error: err.Error()}
	}

	raw, err := e.fetcher.FetchEntries(ctx, src.Route)
	if err != nil {
		return e.recordFetchFailure(ctx, src, existing, err)
	}

	now := e.now()
	priorCreated := make(map[string]time.Time, len(existing))
	for _, entry := range existing {
		priorCreated[entry.ID] = entry.CreatedAt
	}

	rows := make([]model.Entry, 0, len(raw))
	for _, r := range raw {
		id := model.EntryID(src.Route, r.GuidOrLink)
		created := now
		if prior, ok := priorCreated[id]; ok {
			// First-seen time survives the wholesale replace.
			created = prior
		}
		rows = append(rows, model.Entry{
			ID:           id,
			SourceID:     src.ID,
			Route:        src.Route,
			GuidOrLink:   r.GuidOrLink,
			Title:        r.Title,
			Summary:      r.Summary,
			URL:          r.URL,
			ThumbnailURL: r.ThumbnailURL,
			PublishedAt:  r.PublishedAt,
			CachedAt:     now,
			CreatedAt:    created,
			UpdatedAt:    now,
		})
	}
	rows = DedupeEntries(rows)

	latest := src.LastEntryAt
	for i := range rows {
		if latest == nil || rows[i].PublishedAt.After(*latest) {
			t := rows[i].PublishedAt
			latest = &t
		}
	}

	if err := e.store.ReplaceEntries(ctx, src.ID, rows); err != nil {
		return model.RefreshResult{Error: err.Error()}
	}

	successAt := now
	src.LastSuccessAt = &successAt
	src.LastEntryAt = latest
	src.LastErrorAt = nil
	src.LastErrorMessage = ""
	src.UpdatedAt = now
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return model.RefreshResult{Error: err.Error()}
	}

	e.log.Debug().Str("route", src.Route).Int("entries", len(rows)).Msg("source refreshed")
	return model.RefreshResult{OK: true, LastSuccessAt: &successAt}
}

func (e *Engine) recordFetchFailure(ctx context.Context, src *model.Source, existing []model.Entry, fetchErr error) model.RefreshResult {
	now := e.now()
	msg := fetchErr.Error()
	src.LastErrorAt = &now
	src.LastErrorMessage = msg
	src.UpdatedAt = now
	if err := e.store.UpdateSource(ctx, src); err != nil {
		e.log.Error().Err(err).Str("route", src.Route).Msg("recording fetch error failed")
	}
	e.log.Warn().Err(fetchErr).Str("route", src.Route).Msg("feed refresh failed")

	if len(existing) > 0 {
		// Serve stale: cache untouched, prior success time reported.
		return model.RefreshResult{OK: true, Stale: true, LastSuccessAt: src.LastSuccessAt}
	}
	return model.RefreshResult{Error: msg}
}

// RefreshAll refreshes every active, enabled source of the user
// concurrently through a bounded worker pool. Sources refresh
// independently: one failing never affects another's commit.
//
// The aggregate fails only when some source hard-failed and the union
// of cached entries across all sources is empty; stale results or
// isolated failures with cache elsewhere keep the aggregate ok.
func (e *Engine) RefreshAll(ctx context.Context, userID string) model.RefreshResult {
	sources, err := e.GetSources(ctx, userID, model.SourceOptions{})
	if err != nil {
		return model.RefreshResult{Error: err.Error()}
	}
	active := lo.Filter(sources, func(src model.Source, _ int) bool {
		return src.Enabled
	})
	if len(active) == 0 {
		return model.RefreshResult{OK: true}
	}

	workers := e.workers
	if workers > len(active) {
		workers = len(active)
	}

	jobs := make(chan string, len(active))
	results := make(chan model.RefreshResult, len(active))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- e.RefreshSource(ctx, userID, id)
			}
		}()
	}
	for _, src := range active {
		jobs <- src.ID
	}
	close(jobs)
	wg.Wait()
	close(results)

	var stale, hardFail bool
	var latest *time.Time
	for res := range results {
		stale = stale || res.Stale
		hardFail = hardFail || !res.OK
		if res.LastSuccessAt != nil && (latest == nil || res.LastSuccessAt.After(*latest)) {
			latest = res.LastSuccessAt
		}
	}

	cached, err := e.store.GetEntries(ctx, userID)
	if err != nil {
		return model.RefreshResult{Stale: stale, LastSuccessAt: latest, Error: err.Error()}
	}
	if hardFail && len(cached) == 0 {
		return model.RefreshResult{
			Stale:         stale,
			LastSuccessAt: latest,
			Error:         "Refresh failed with no cached entries",
		}
	}
	return model.RefreshResult{OK: true, Stale: stale, LastSuccessAt: latest}
}
