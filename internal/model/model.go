// Package model defines shared data structures.
package model

import "time"

// Mode classifies the context a search runs in.
type Mode string

// Search modes. RSS is the background feed poll; the others are interactive.
const (
	ModeRSS     Mode = "RSS"
	ModeEpisode Mode = "Episode"
	ModeSeason  Mode = "Season"
)

// ModeQueries holds the query strings to run for one search mode.
type ModeQueries struct {
	Mode    Mode
	Queries []string
}

// SearchResult is one normalized hit from an on-demand search.
type SearchResult struct {
	Title   string    `json:"title"`
	Link    string    `json:"link"`
	Size    int64     `json:"size"` // -1 when unknown
	PubDate time.Time `json:"pubdate"`
}

// CacheItem is one persisted feed entry.
type CacheItem struct {
	ID          int64      `json:"id" db:"id"`
	Provider    string     `json:"provider" db:"provider"`
	Category    string     `json:"category" db:"category"`
	Title       *string    `json:"title,omitempty" db:"title"` // nil if unrecoverable
	URL         *string    `json:"url,omitempty" db:"url"`
	GUID        string     `json:"guid" db:"guid"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	AddedAt     time.Time  `json:"added_at" db:"added_at"`
}

// Settings key constants.
const (
	// SettingLastUpdatePrefix is suffixed with the provider name.
	SettingLastUpdatePrefix = "last_update:"
)
