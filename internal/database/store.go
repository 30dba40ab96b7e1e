// Package database provides storage backends for the provider cache.
package database

import (
	"github.com/bryan-buckman/binsearch/internal/model"
)

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Cache operations
	ClearProviderCache(provider string) error
	UpsertCacheItems(items []model.CacheItem) error
	// GetCacheItems returns cached rows for a provider; limit <= 0 means no limit.
	GetCacheItems(provider string, limit int) ([]model.CacheItem, error)

	// Settings operations
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}
