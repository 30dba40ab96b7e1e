package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/bryan-buckman/binsearch/internal/config"
	"github.com/bryan-buckman/binsearch/internal/database"
	"github.com/bryan-buckman/binsearch/internal/model"
)

// DefaultMinInterval is used when no minimum refresh interval is configured.
const DefaultMinInterval = 30 * time.Minute

// FeedFetcher retrieves and parses a feed.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, rawURL string, params url.Values) (*gofeed.Feed, error)
}

// CacheStore is the subset of database.Store the updater needs.
type CacheStore interface {
	ClearProviderCache(provider string) error
	UpsertCacheItems(items []model.CacheItem) error
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Notifier is told about every successful refresh.
type Notifier interface {
	NotifyRefresh(ctx context.Context, provider string, items []model.CacheItem) error
}

// RefreshStats describes the outcome of one Update call.
type RefreshStats struct {
	Skipped    bool      `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	Categories int       `json:"categories"`
	Invalid    []string  `json:"invalid,omitempty"`
	Items      int       `json:"items"`
	Err        error     `json:"-"`
}

// Updater refreshes the provider's cache from its category feeds.
type Updater struct {
	cfg         config.ProviderConfig
	feeds       FeedFetcher
	store       CacheStore
	notifier    Notifier
	titles      titleRecovery
	minInterval time.Duration
	log         logrus.FieldLogger
	now         func() time.Time

	// running is held for a whole refresh; mu only guards the fields below.
	running    sync.Mutex
	mu         sync.Mutex
	lastUpdate time.Time
}

// NewUpdater creates an Updater. A non-positive minInterval selects
// DefaultMinInterval.
func NewUpdater(cfg config.ProviderConfig, feeds FeedFetcher, store CacheStore, minInterval time.Duration, log logrus.FieldLogger) *Updater {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Updater{
		cfg:         cfg,
		feeds:       feeds,
		store:       store,
		titles:      newTitleRecovery(cfg.BaseURL),
		minInterval: minInterval,
		log:         log.WithField("provider", cfg.Name),
		now:         time.Now,
	}
}

// SetNotifier registers n to be called after each stored refresh.
func (u *Updater) SetNotifier(n Notifier) {
	u.mu.Lock()
	u.notifier = n
	u.mu.Unlock()
}

// LastUpdate returns the time the current cache contents were claimed.
func (u *Updater) LastUpdate() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastUpdate
}

func (u *Updater) stateKey() string {
	return model.SettingLastUpdatePrefix + u.cfg.Name
}

// LoadState restores the last refresh time persisted by a previous run.
func (u *Updater) LoadState() error {
	val, err := u.store.GetSetting(u.stateKey())
	if errors.Is(err, database.ErrSettingNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load last update: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return fmt.Errorf("parse last update %q: %w", val, err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if t.After(u.lastUpdate) {
		u.lastUpdate = t
	}
	return nil
}

// Update refreshes the cache unless the previous refresh is younger than
// the minimum interval or another refresh is in progress; both cases return
// Skipped without waiting. Store failures are reported through
// RefreshStats.Err.
func (u *Updater) Update(ctx context.Context) RefreshStats {
	if !u.running.TryLock() {
		u.log.Debug("Cache refresh already running")
		return RefreshStats{Skipped: true}
	}
	defer u.running.Unlock()

	started := u.now()
	if last := u.LastUpdate(); !last.IsZero() && started.Sub(last) < u.minInterval {
		u.log.WithField("last_update", last).Debug("Cache refresh not due yet")
		return RefreshStats{Skipped: true}
	}

	stats := RefreshStats{StartedAt: started}
	if err := u.store.ClearProviderCache(u.cfg.Name); err != nil {
		stats.Err = fmt.Errorf("clear cache: %w", err)
		u.log.WithError(err).Error("Unable to clear provider cache")
		return stats
	}
	u.mu.Lock()
	u.lastUpdate = started
	notifier := u.notifier
	u.mu.Unlock()
	if err := u.store.SetSetting(u.stateKey(), started.UTC().Format(time.RFC3339Nano)); err != nil {
		u.log.WithError(err).Warn("Unable to persist last update time")
	}

	u.log.Info("Updating cache")

	var items []model.CacheItem
	for _, category := range u.cfg.Categories {
		if ctx.Err() != nil {
			break
		}
		clog := u.log.WithField("category", category)

		params := url.Values{
			"max": {strconv.Itoa(u.cfg.RSSMaxResults)},
			"g":   {category},
		}
		feed, err := u.feeds.FetchFeed(ctx, u.cfg.RSSURL(), params)
		if err != nil {
			clog.WithError(err).Debug("No data returned from provider")
			continue
		}
		if checkFeed(feed) == nil {
			clog.Warn("Provider returned an invalid feed")
			stats.Invalid = append(stats.Invalid, category)
			continue
		}
		if len(feed.Items) == 0 {
			clog.Debug("No data returned from provider")
			continue
		}

		stats.Categories++
		for _, entry := range feed.Items {
			if entry == nil {
				continue
			}
			items = append(items, u.cacheItem(entry, category, started))
		}
	}

	items = dedupeByURL(items)
	stats.Items = len(items)
	if len(items) == 0 {
		return stats
	}

	if err := u.store.UpsertCacheItems(items); err != nil {
		stats.Err = fmt.Errorf("store cache items: %w", err)
		u.log.WithError(err).Error("Unable to store cache items")
		return stats
	}
	u.log.WithField("items", len(items)).Info("Cache updated")

	if notifier != nil {
		if err := notifier.NotifyRefresh(ctx, u.cfg.Name, items); err != nil {
			u.log.WithError(err).Warn("Unable to publish refresh notification")
		}
	}
	return stats
}

func (u *Updater) cacheItem(entry *gofeed.Item, category string, now time.Time) model.CacheItem {
	title, link := u.titles.titleAndURL(entry)
	item := model.CacheItem{
		Provider: u.cfg.Name,
		Category: category,
		Title:    title,
		URL:      link,
		GUID:     entry.GUID,
		AddedAt:  now,
	}
	if item.GUID == "" && link != nil {
		item.GUID = *link
	}
	if entry.PublishedParsed != nil {
		pub := *entry.PublishedParsed
		item.PublishedAt = &pub
	}
	return item
}

// dedupeByURL keeps the first item for each download URL, matching the
// store's one-row-per-URL constraint. Items without a URL are all kept.
func dedupeByURL(items []model.CacheItem) []model.CacheItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if it.URL != nil {
			if seen[*it.URL] {
				continue
			}
			seen[*it.URL] = true
		}
		out = append(out, it)
	}
	return out
}
