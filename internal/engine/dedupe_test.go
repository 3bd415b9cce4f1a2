package engine

import (
	"testing"

	"github.com/bryan-buckman/feedcache/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(route, guid, title string) model.Entry {
	return model.Entry{
		ID:         model.EntryID(route, guid),
		Route:      route,
		GuidOrLink: guid,
		Title:      title,
	}
}

func TestDedupeLastWriteWinsFirstSeenOrder(t *testing.T) {
	deduped := DedupeEntries([]model.Entry{
		entry("/a", "1", "v1"),
		entry("/a", "1", "v2"),
		entry("/a", "2", "v3"),
	})

	require.Len(t, deduped, 2)
	// The later duplicate wins the value but keeps the first slot.
	assert.Equal(t, "v2", deduped[0].Title)
	assert.Equal(t, "1", deduped[0].GuidOrLink)
	assert.Equal(t, "v3", deduped[1].Title)
}

func TestDedupeIdempotent(t *testing.T) {
	input := []model.Entry{
		entry("/a", "1", "v1"),
		entry("/b", "1", "v2"),
		entry("/a", "1", "v3"),
		entry("/a", "2", "v4"),
	}
	once := DedupeEntries(input)
	twice := DedupeEntries(once)
	assert.Equal(t, once, twice)
}

func TestDedupeKeySpansRoutes(t *testing.T) {
	// Same guid under different routes stays distinct.
	deduped := DedupeEntries([]model.Entry{
		entry("/a", "1", "from a"),
		entry("/b", "1", "from b"),
	})
	assert.Len(t, deduped, 2)
}

func TestDedupeEmpty(t *testing.T) {
	assert.Empty(t, DedupeEntries(nil))
}
