// Package database provides SQLite storage for the provider cache.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bryan-buckman/binsearch/internal/model"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ErrSettingNotFound is returned by GetSetting for unknown keys.
var ErrSettingNotFound = errors.New("setting not found")

// DB wraps the SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the poller and API refreshes.
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

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS provider_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		title TEXT,
		url TEXT,
		guid TEXT NOT NULL DEFAULT '',
		published_at DATETIME,
		added_at DATETIME NOT NULL,
		UNIQUE(provider, url)
	);
	CREATE INDEX IF NOT EXISTS idx_provider_cache_provider ON provider_cache(provider);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Cache Methods ---

// ClearProviderCache deletes every cached row of a provider.
func (db *DB) ClearProviderCache(provider string) error {
	_, err := db.conn.Exec("DELETE FROM provider_cache WHERE provider = ?", provider)
	return err
}

// UpsertCacheItems writes all items in one transaction.
func (db *DB) UpsertCacheItems(items []model.CacheItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`
		INSERT INTO provider_cache (provider, category, title, url, guid, published_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, url) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			guid = excluded.guid,
			published_at = excluded.published_at,
			added_at = excluded.added_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.Exec(it.Provider, it.Category, it.Title, it.URL, it.GUID, it.PublishedAt, it.AddedAt); err != nil {
			return fmt.Errorf("upsert cache item %q: %w", it.GUID, err)
		}
	}
	return tx.Commit()
}

// GetCacheItems returns cached rows in insertion order.
func (db *DB) GetCacheItems(provider string, limit int) ([]model.CacheItem, error) {
	if limit <= 0 {
		limit = -1
	}
	var items []model.CacheItem
	err := db.conn.Select(&items, `
		SELECT id, provider, category, title, url, guid, published_at, added_at
		FROM provider_cache WHERE provider = ? ORDER BY id LIMIT ?`, provider, limit)
	return items, err
}

// --- Settings Methods ---

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(key string) (string, error) {
	var val string
	err := db.conn.Get(&val, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}
