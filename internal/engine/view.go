package engine

import (
	"context"
	"sort"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/samber/lo"
)

// DedupeEntries collapses entries sharing a dedup key. When several
// entries carry the same key, the last one in the input wins the
// value, but it sits at the position of the key's first occurrence.
func DedupeEntries(entries []model.Entry) []model.Entry {
	index := make(map[string]int, len(entries))
	out := make([]model.Entry, 0, len(entries))
	for _, entry := range entries {
		key := model.EntryID(entry.Route, entry.GuidOrLink)
		if at, ok := index[key]; ok {
			out[at] = entry
			continue
		}
		index[key] = len(out)
		out = append(out, entry)
	}
	return out
}

// GetEntries returns the flat cached entry list, for one source when
// sourceID is non-empty, sorted by publish time descending.
func (e *Engine) GetEntries(ctx context.Context, userID, sourceID string) ([]model.Entry, error) {
	var (
		rows []model.Entry
		err  error
	)
	if sourceID != "" {
		rows, err = e.store.GetEntriesBySource(ctx, sourceID)
	} else {
		rows, err = e.store.GetEntries(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	sortEntriesDesc(rows)
	return rows, nil
}

// GetEntriesView resolves the scope to a source-id set, fetches their
// cached entries, dedupes across sources, and sorts by publish time
// descending.
func (e *Engine) GetEntriesView(ctx context.Context, userID string, scope model.EntryScope) ([]model.Entry, error) {
	ids, err := e.resolveScope(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Entry{}, nil
	}

	rows, err := e.store.GetEntriesBySources(ctx, ids)
	if err != nil {
		return nil, err
	}
	// Ascending first so the newest entry of a duplicated key wins the
	// dedup pass.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PublishedAt.Before(rows[j].PublishedAt)
	})
	deduped := DedupeEntries(rows)
	sortEntriesDesc(deduped)
	return deduped, nil
}

func (e *Engine) resolveScope(ctx context.Context, userID string, scope model.EntryScope) ([]string, error) {
	switch scope.Kind {
	case model.ScopeSource:
		src, err := e.store.GetSource(ctx, scope.SourceID)
		if err != nil {
			return nil, err
		}
		if src == nil || src.UserID != userID || src.Deleted() {
			return nil, nil
		}
		return []string{src.ID}, nil
	case model.ScopeGroup:
		return e.sourceIDs(ctx, userID, model.SourceOptions{FilterGroup: true, GroupID: scope.GroupID})
	case model.ScopeStarred:
		return e.sourceIDs(ctx, userID, model.SourceOptions{OnlyStarred: true})
	default:
		return e.sourceIDs(ctx, userID, model.SourceOptions{})
	}
}

func (e *Engine) sourceIDs(ctx context.Context, userID string, opts model.SourceOptions) ([]string, error) {
	sources, err := e.GetSources(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(sources, func(src model.Source, _ int) string {
		return src.ID
	}), nil
}

// GroupEntriesByDay buckets entries by the local calendar day of their
// publish time, relative to now's location and day. Buckets come back
// newest day first, entries within a bucket newest first.
func GroupEntriesByDay(entries []model.Entry, now time.Time) []model.DayBucket {
	loc := now.Location()
	todayStart := dayStart(now)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	index := make(map[string]int)
	var buckets []model.DayBucket
	for _, entry := range entries {
		local := entry.PublishedAt.In(loc)
		key := local.Format("2006-01-02")
		if at, ok := index[key]; ok {
			buckets[at].Entries = append(buckets[at].Entries, entry)
			continue
		}
		start := dayStart(local)
		bucketType := model.BucketDate
		if start.Equal(todayStart) {
			bucketType = model.BucketToday
		} else if start.Equal(yesterdayStart) {
			bucketType = model.BucketYesterday
		}
		index[key] = len(buckets)
		buckets = append(buckets, model.DayBucket{
			Key:     key,
			Type:    bucketType,
			Date:    start,
			Entries: []model.Entry{entry},
		})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date.After(buckets[j].Date)
	})
	for i := range buckets {
		sortEntriesDesc(buckets[i].Entries)
	}
	return buckets
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sortEntriesDesc(entries []model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(entries[j].PublishedAt)
	})
}
