package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bryan-buckman/feedcache/internal/feed"
	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AddSource registers a feed source. The route must be a local route
// or an absolute http(s) URL and unique per user regardless of delete
// state; an empty display name is derived from the route.
func (e *Engine) AddSource(ctx context.Context, userID, route, displayName string, groupID *string) (*model.Source, error) {
	route = strings.TrimSpace(route)
	displayName = strings.TrimSpace(displayName)

	if route == "" {
		return nil, &model.ValidationError{Message: "Route or RSS URL is required"}
	}
	if !feed.ValidRoute(route) && !feed.LooksLikeURL(route) {
		return nil, &model.ValidationError{Message: "Source must be route like /platform/path or RSS URL"}
	}
	if displayName == "" {
		displayName = feed.DefaultDisplayName(route)
	}

	if groupID != nil {
		if _, err := e.loadOwnedGroup(ctx, userID, *groupID); err != nil {
			return nil, err
		}
	}

	existing, err := e.store.GetSourceByRoute(ctx, userID, route)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &model.ValidationError{Message: "Source already exists"}
	}

	now := e.now()
	src := &model.Source{
		ID:          uuid.NewString(),
		UserID:      userID,
		Route:       route,
		DisplayName: displayName,
		Enabled:     true,
		GroupID:     groupID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	e.log.Debug().Str("route", route).Str("source_id", src.ID).Msg("source added")
	return src, nil
}

// GetSources lists the user's sources, filtered per opts and sorted by
// activity score descending with a display-name tie-break.
func (e *Engine) GetSources(ctx context.Context, userID string, opts model.SourceOptions) ([]model.Source, error) {
	rows, err := e.store.GetSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered := lo.Filter(rows, func(src model.Source, _ int) bool {
		return matchesOptions(&src, opts)
	})
	sortSourcesByActivity(filtered)
	return filtered, nil
}

func matchesOptions(src *model.Source, opts model.SourceOptions) bool {
	if !opts.IncludeRemoved && src.Deleted() {
		return false
	}
	if (opts.OnlyStarred || opts.Section == model.SectionFavorites) && src.StarredAt == nil {
		return false
	}
	if opts.FilterGroup {
		if opts.GroupID == nil {
			if src.GroupID != nil {
				return false
			}
		} else if src.GroupID == nil || *src.GroupID != *opts.GroupID {
			return false
		}
	}
	return true
}

// RemoveSource soft-deletes a source. Its entries and read states are
// retained; only the flags change.
func (e *Engine) RemoveSource(ctx context.Context, userID, sourceID string) (*model.Source, error) {
	src, err := e.loadOwnedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	src.Enabled = false
	src.DeletedAt = &now
	src.UpdatedAt = now
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// RestoreSource reverses a soft delete.
func (e *Engine) RestoreSource(ctx context.Context, userID, sourceID string) (*model.Source, error) {
	src, err := e.loadOwnedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	src.Enabled = true
	src.DeletedAt = nil
	src.UpdatedAt = e.now()
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// StarSource stamps the source as starred.
func (e *Engine) StarSource(ctx context.Context, userID, sourceID string) (*model.Source, error) {
	src, err := e.loadOwnedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	src.StarredAt = &now
	src.UpdatedAt = now
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// UnstarSource clears the star.
func (e *Engine) UnstarSource(ctx context.Context, userID, sourceID string) (*model.Source, error) {
	src, err := e.loadOwnedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	src.StarredAt = nil
	src.UpdatedAt = e.now()
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// AssignSourceGroup moves a source into a group, or ungroups it when
// groupID is nil. Both entities must belong to the caller's user.
func (e *Engine) AssignSourceGroup(ctx context.Context, userID, sourceID string, groupID *string) (*model.Source, error) {
	src, err := e.loadOwnedSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	if groupID != nil {
		if _, err := e.loadOwnedGroup(ctx, userID, *groupID); err != nil {
			return nil, err
		}
	}
	src.GroupID = groupID
	src.UpdatedAt = e.now()
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (e *Engine) loadOwnedSource(ctx context.Context, userID, sourceID string) (*model.Source, error) {
	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src == nil || src.UserID != userID {
		return nil, &model.ValidationError{Message: "Source not found"}
	}
	return src, nil
}

// activityScore is the source sort key: the latest of last entry,
// last success, and last update.
func activityScore(src *model.Source) time.Time {
	score := src.UpdatedAt
	if src.LastEntryAt != nil && src.LastEntryAt.After(score) {
		score = *src.LastEntryAt
	}
	if src.LastSuccessAt != nil && src.LastSuccessAt.After(score) {
		score = *src.LastSuccessAt
	}
	return score
}

func sortSourcesByActivity(sources []model.Source) {
	c := collate.New(language.Und)
	sort.SliceStable(sources, func(i, j int) bool {
		si, sj := activityScore(&sources[i]), activityScore(&sources[j])
		if !si.Equal(sj) {
			return si.After(sj)
		}
		return c.CompareString(sources[i].DisplayName, sources[j].DisplayName) < 0
	})
}
