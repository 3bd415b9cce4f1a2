// Package database provides SQLite storage for the feed cache engine.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/feedcache/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY churn under concurrent refreshes.
	conn.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_groups (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		route TEXT NOT NULL,
		display_name TEXT NOT NULL,
		is_preset INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		group_id TEXT REFERENCES source_groups(id),
		starred_at DATETIME,
		deleted_at DATETIME,
		last_entry_at DATETIME,
		last_success_at DATETIME,
		last_error_at DATETIME,
		last_error_message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(user_id, route)
	);
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		route TEXT NOT NULL,
		guid_or_link TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		published_at DATETIME NOT NULL,
		cached_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_source_id ON entries(source_id);
	CREATE TABLE IF NOT EXISTS read_states (
		user_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		read_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, entry_id)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Source Methods ---

const sourceColumns = `id, user_id, route, display_name, is_preset, enabled, group_id,
	starred_at, deleted_at, last_entry_at, last_success_at, last_error_at,
	last_error_message, created_at, updated_at`

// CreateSource inserts a new source row.
func (db *DB) CreateSource(ctx context.Context, src *model.Source) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.UserID, src.Route, src.DisplayName, src.IsPreset, src.Enabled,
		src.GroupID, nullTime(src.StarredAt), nullTime(src.DeletedAt),
		nullTime(src.LastEntryAt), nullTime(src.LastSuccessAt), nullTime(src.LastErrorAt),
		src.LastErrorMessage, src.CreatedAt, src.UpdatedAt)
	return err
}

// GetSource returns the source with the given id, or nil if absent.
func (db *DB) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)
	return scanSource(row)
}

// GetSourceByRoute returns the user's source for the route, or nil.
func (db *DB) GetSourceByRoute(ctx context.Context, userID, route string) (*model.Source, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE user_id = ? AND route = ?", userID, route)
	return scanSource(row)
}

// GetSources returns every source of the user, including soft-deleted
// ones; filtering is the engine's concern.
func (db *DB) GetSources(ctx context.Context, userID string) ([]model.Source, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+sourceColumns+" FROM sources WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []model.Source
	for rows.Next() {
		src, err := scanSourceRow(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSource rewrites every mutable column of the source row.
func (db *DB) UpdateSource(ctx context.Context, src *model.Source) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET display_name = ?, is_preset = ?, enabled = ?, group_id = ?,
			starred_at = ?, deleted_at = ?, last_entry_at = ?, last_success_at = ?,
			last_error_at = ?, last_error_message = ?, updated_at = ?
		WHERE id = ?`,
		src.DisplayName, src.IsPreset, src.Enabled, src.GroupID,
		nullTime(src.StarredAt), nullTime(src.DeletedAt), nullTime(src.LastEntryAt),
		nullTime(src.LastSuccessAt), nullTime(src.LastErrorAt), src.LastErrorMessage,
		src.UpdatedAt, src.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row *sql.Row) (*model.Source, error) {
	src, err := scanSourceRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return src, err
}

func scanSourceRow(row rowScanner) (*model.Source, error) {
	var src model.Source
	var starredAt, deletedAt, lastEntryAt, lastSuccessAt, lastErrorAt sql.NullTime
	err := row.Scan(&src.ID, &src.UserID, &src.Route, &src.DisplayName, &src.IsPreset,
		&src.Enabled, &src.GroupID, &starredAt, &deletedAt, &lastEntryAt,
		&lastSuccessAt, &lastErrorAt, &src.LastErrorMessage, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	src.StarredAt = timePtr(starredAt)
	src.DeletedAt = timePtr(deletedAt)
	src.LastEntryAt = timePtr(lastEntryAt)
	src.LastSuccessAt = timePtr(lastSuccessAt)
	src.LastErrorAt = timePtr(lastErrorAt)
	return &src, nil
}

// --- Group Methods ---

// CreateSourceGroup inserts a new group row.
func (db *DB) CreateSourceGroup(ctx context.Context, group *model.SourceGroup) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO source_groups (id, user_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.UserID, group.Name, group.CreatedAt, group.UpdatedAt)
	return err
}

// GetSourceGroup returns the group with the given id, or nil if absent.
func (db *DB) GetSourceGroup(ctx context.Context, id string) (*model.SourceGroup, error) {
	var g model.SourceGroup
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, user_id, name, created_at, updated_at FROM source_groups WHERE id = ?", id).
		Scan(&g.ID, &g.UserID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetSourceGroups returns every group of the user.
func (db *DB) GetSourceGroups(ctx context.Context, userID string) ([]model.SourceGroup, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, user_id, name, created_at, updated_at FROM source_groups WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []model.SourceGroup
	for rows.Next() {
		var g model.SourceGroup
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateSourceGroup rewrites the group's name and update time.
func (db *DB) UpdateSourceGroup(ctx context.Context, group *model.SourceGroup) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE source_groups SET name = ?, updated_at = ? WHERE id = ?",
		group.Name, group.UpdatedAt, group.ID)
	return err
}

// DeleteSourceGroup deletes the group and ungroups its sources in one
// transaction. Sources are never deleted with their group.
func (db *DB) DeleteSourceGroup(ctx context.Context, userID, groupID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM source_groups WHERE id = ? AND user_id = ?", groupID, userID); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sources SET group_id = NULL, updated_at = ? WHERE user_id = ? AND group_id = ?",
		time.Now().UTC(), userID, groupID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Entry Methods ---

const entryColumns = `id, source_id, route, guid_or_link, title, summary, url,
	thumbnail_url, published_at, cached_at, created_at, updated_at`

// GetEntries returns every cached entry across the user's sources,
// deleted sources included (their entries are retained).
func (db *DB) GetEntries(ctx context.Context, userID string) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT e.id, e.source_id, e.route, e.guid_or_link, e.title, e.summary, e.url,
			e.thumbnail_url, e.published_at, e.cached_at, e.created_at, e.updated_at
		FROM entries e
		JOIN sources s ON s.id = e.source_id
		WHERE s.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetEntriesBySource returns the cached entries of one source.
func (db *DB) GetEntriesBySource(ctx context.Context, sourceID string) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetEntriesBySources returns the cached entries of any of the given
// sources.
func (db *DB) GetEntriesBySources(ctx context.Context, sourceIDs []string) ([]model.Entry, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?, ", len(sourceIDs)-1) + "?"
	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE source_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ReplaceEntries swaps the source's cached entry set atomically.
func (db *DB) ReplaceEntries(ctx context.Context, sourceID string, entries []model.Entry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE source_id = ?", sourceID); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id, route = excluded.route,
			guid_or_link = excluded.guid_or_link, title = excluded.title,
			summary = excluded.summary, url = excluded.url,
			thumbnail_url = excluded.thumbnail_url, published_at = excluded.published_at,
			cached_at = excluded.cached_at, updated_at = excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.SourceID, e.Route, e.GuidOrLink, e.Title,
			e.Summary, e.URL, e.ThumbnailURL, e.PublishedAt, e.CachedAt, e.CreatedAt, e.UpdatedAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Route, &e.GuidOrLink, &e.Title, &e.Summary,
			&e.URL, &e.ThumbnailURL, &e.PublishedAt, &e.CachedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Read-State Methods ---

// GetReadStates returns every read marker of the user.
func (db *DB) GetReadStates(ctx context.Context, userID string) ([]model.ReadState, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id, entry_id, read_at FROM read_states WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []model.ReadState
	for rows.Next() {
		var rs model.ReadState
		if err := rows.Scan(&rs.UserID, &rs.EntryID, &rs.ReadAt); err != nil {
			return nil, err
		}
		states = append(states, rs)
	}
	return states, rows.Err()
}

// UpsertReadStates writes the given markers, advancing read_at for
// rows that already exist.
func (db *DB) UpsertReadStates(ctx context.Context, states []model.ReadState) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO read_states (user_id, entry_id, read_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, entry_id) DO UPDATE SET read_at = excluded.read_at`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rs := range states {
		if _, err := stmt.ExecContext(ctx, rs.UserID, rs.EntryID, rs.ReadAt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --- helpers ---

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
