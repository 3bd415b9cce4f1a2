package engine

import (
	"context"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/samber/lo"
)

// GetReadStates returns every read marker of the user.
func (e *Engine) GetReadStates(ctx context.Context, userID string) ([]model.ReadState, error) {
	return e.store.GetReadStates(ctx, userID)
}

// MarkEntriesAsRead upserts a read marker for each entry id with the
// current time; already-read entries just get their read time
// advanced. Returns the user's full current read-state set so callers
// can reconcile in one pass.
func (e *Engine) MarkEntriesAsRead(ctx context.Context, userID string, entryIDs []string) ([]model.ReadState, error) {
	now := e.now()
	states := lo.Map(lo.Uniq(entryIDs), func(entryID string, _ int) model.ReadState {
		return model.ReadState{UserID: userID, EntryID: entryID, ReadAt: now}
	})
	if err := e.store.UpsertReadStates(ctx, states); err != nil {
		return nil, err
	}
	return e.store.GetReadStates(ctx, userID)
}
