// Package database provides storage for the feed cache engine.
package database

import (
	"context"

	"github.com/bryan-buckman/feedcache/internal/model"
)

// Store defines the interface the engine depends on. The SQLite
// implementation satisfies it; tests may substitute their own.
//
// Lookup methods that miss return (nil, nil) rather than an error, so
// callers can distinguish "absent" from "broken" without sentinel
// comparisons.
type Store interface {
	Close() error

	// Source operations
	CreateSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	GetSourceByRoute(ctx context.Context, userID, route string) (*model.Source, error)
	GetSources(ctx context.Context, userID string) ([]model.Source, error)
	UpdateSource(ctx context.Context, src *model.Source) error

	// Group operations
	CreateSourceGroup(ctx context.Context, group *model.SourceGroup) error
	GetSourceGroup(ctx context.Context, id string) (*model.SourceGroup, error)
	GetSourceGroups(ctx context.Context, userID string) ([]model.SourceGroup, error)
	UpdateSourceGroup(ctx context.Context, group *model.SourceGroup) error
	// DeleteSourceGroup removes the group and nulls the group id on
	// every source that referenced it, in one transaction.
	DeleteSourceGroup(ctx context.Context, userID, groupID string) error

	// Entry operations
	GetEntries(ctx context.Context, userID string) ([]model.Entry, error)
	GetEntriesBySource(ctx context.Context, sourceID string) ([]model.Entry, error)
	GetEntriesBySources(ctx context.Context, sourceIDs []string) ([]model.Entry, error)
	// ReplaceEntries deletes every entry of the source and inserts the
	// given rows in one transaction, so readers never observe the
	// source half-refreshed.
	ReplaceEntries(ctx context.Context, sourceID string, entries []model.Entry) error

	// Read-state operations
	GetReadStates(ctx context.Context, userID string) ([]model.ReadState, error)
	UpsertReadStates(ctx context.Context, states []model.ReadState) error
}
