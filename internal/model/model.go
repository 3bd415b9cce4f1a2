// Package model defines shared data structures.
package model

import "time"

// Source represents a subscribed feed. Its Route is either a local
// route like /platform/path or an absolute http(s) URL.
type Source struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Route            string     `json:"route"`
	DisplayName      string     `json:"display_name"`
	IsPreset         bool       `json:"is_preset"`
	Enabled          bool       `json:"enabled"`
	GroupID          *string    `json:"group_id,omitempty"` // nullable if ungrouped
	StarredAt        *time.Time `json:"starred_at,omitempty"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"` // soft delete marker
	LastEntryAt      *time.Time `json:"last_entry_at,omitempty"`
	LastSuccessAt    *time.Time `json:"last_success_at,omitempty"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Deleted reports whether the source has been soft-deleted.
func (s *Source) Deleted() bool {
	return s.DeletedAt != nil
}

// SourceGroup is a user-defined label for organizing sources.
type SourceGroup struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is a single cached feed item.
type Entry struct {
	ID           string    `json:"id"` // deterministic: route + "::" + guidOrLink
	SourceID     string    `json:"source_id"`
	Route        string    `json:"route"`
	GuidOrLink   string    `json:"guid_or_link"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	CachedAt     time.Time `json:"cached_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EntryID builds the deterministic entry identity from its route and
// guid-or-link pair. Entries with equal ids are the same item.
func EntryID(route, guidOrLink string) string {
	return route + "::" + guidOrLink
}

// RawEntry is one parsed feed item before it is bound to a source.
type RawEntry struct {
	GuidOrLink   string
	Title        string
	Summary      string
	URL          string
	ThumbnailURL string
	PublishedAt  time.Time
}

// ReadState marks an entry as read by a user. Identity is the
// (UserID, EntryID) pair; re-marking only advances ReadAt.
type ReadState struct {
	UserID  string    `json:"user_id"`
	EntryID string    `json:"entry_id"`
	ReadAt  time.Time `json:"read_at"`
}

// RefreshResult is the typed outcome of a refresh. It is data, not an
// error: callers branch on OK and Stale.
type RefreshResult struct {
	OK            bool       `json:"ok"`
	Stale         bool       `json:"stale"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// ScopeKind selects which sources an entry view covers.
type ScopeKind string

const (
	ScopeAllActive ScopeKind = "all-active"
	ScopeSource    ScopeKind = "source"
	ScopeGroup     ScopeKind = "group"
	ScopeStarred   ScopeKind = "starred"
)

// EntryScope resolves to a set of source ids. For ScopeGroup a nil
// GroupID selects ungrouped sources.
type EntryScope struct {
	Kind     ScopeKind
	SourceID string
	GroupID  *string
}

// ListSection mirrors the source list tabs.
type ListSection string

const (
	SectionAll           ListSection = "all"
	SectionFavorites     ListSection = "favorites"
	SectionSubscriptions ListSection = "subscriptions"
)

// SourceOptions filter a source listing.
type SourceOptions struct {
	IncludeRemoved bool
	OnlyStarred    bool
	Section        ListSection
	// FilterGroup enables group filtering; with it set, a nil GroupID
	// selects ungrouped sources.
	FilterGroup bool
	GroupID     *string
}

// DayBucketType classifies a day bucket relative to "now".
type DayBucketType string

const (
	BucketToday     DayBucketType = "today"
	BucketYesterday DayBucketType = "yesterday"
	BucketDate      DayBucketType = "date"
)

// DayBucket groups entries sharing a local calendar day.
type DayBucket struct {
	Key     string        `json:"key"` // YYYY-MM-DD
	Type    DayBucketType `json:"type"`
	Date    time.Time     `json:"date"` // start of day
	Entries []Entry       `json:"entries"`
}
