// Package engine implements the feed cache core: source registry,
// refresh orchestration, entry views, and read tracking.
package engine

import (
	"time"

	"github.com/bryan-buckman/feedcache/internal/database"
	"github.com/bryan-buckman/feedcache/internal/feed"
	"github.com/rs/zerolog"
)

// DefaultRefreshWorkers bounds the refresh-all fan-out when no worker
// count is configured.
const DefaultRefreshWorkers = 8

// Engine wires the store and fetch adapter together. Callers are
// assumed to be authorized; the engine does no permission checks.
type Engine struct {
	store   database.Store
	fetcher feed.Fetcher
	workers int
	log     zerolog.Logger
	locks   sourceLocks

	now func() time.Time
}

// New creates an engine. workers bounds the refresh-all fan-out;
// values below one fall back to DefaultRefreshWorkers.
func New(store database.Store, fetcher feed.Fetcher, workers int, logger zerolog.Logger) *Engine {
	if workers < 1 {
		workers = DefaultRefreshWorkers
	}
	return &Engine{
		store:   store,
		fetcher: fetcher,
		workers: workers,
		log:     logger.With().Str("component", "engine").Logger(),
		locks:   newSourceLocks(),
		now:     time.Now,
	}
}
