package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/binsearch/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func sampleItems(provider string, now time.Time) []model.CacheItem {
	pub := now.Add(-time.Hour)
	return []model.CacheItem{
		{Provider: provider, Category: "alt.binaries.tv", Title: strPtr("Show.A.S01E01"), URL: strPtr("https://www.binsearch.info/?action=nzb&1=1"), GUID: "g1", PublishedAt: &pub, AddedAt: now},
		{Provider: provider, Category: "alt.binaries.tv", Title: nil, URL: strPtr("https://www.binsearch.info/?action=nzb&2=1"), GUID: "g2", AddedAt: now},
		{Provider: provider, Category: "alt.binaries.hdtv", Title: strPtr("Show.B.S02E02"), URL: strPtr("https://www.binsearch.info/?action=nzb&3=1"), GUID: "g3", AddedAt: now},
	}
}

func TestUpsertAndGetCacheItems(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.UpsertCacheItems(sampleItems("binsearch", now)))

	got, err := db.GetCacheItems("binsearch", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Show.A.S01E01", *got[0].Title)
	require.NotNil(t, got[0].PublishedAt)
	assert.WithinDuration(t, now.Add(-time.Hour), *got[0].PublishedAt, time.Second)
	assert.Nil(t, got[1].Title, "absent title must stay NULL")
	assert.Nil(t, got[1].PublishedAt)
	assert.WithinDuration(t, now, got[2].AddedAt, time.Second)

	limited, err := db.GetCacheItems("binsearch", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpsertCacheItems_UpdatesOnSameURL(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	items := sampleItems("binsearch", now)
	require.NoError(t, db.UpsertCacheItems(items))

	items[0].Title = strPtr("Show.A.S01E01.REPACK")
	require.NoError(t, db.UpsertCacheItems(items[:1]))

	got, err := db.GetCacheItems("binsearch", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Show.A.S01E01.REPACK", *got[0].Title)
}

func TestUpsertCacheItems_Empty(t *testing.T) {
	db := testDB(t)
	assert.NoError(t, db.UpsertCacheItems(nil))
}

func TestClearProviderCache_OnlyTouchesProvider(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	require.NoError(t, db.UpsertCacheItems(sampleItems("binsearch", now)))
	require.NoError(t, db.UpsertCacheItems(sampleItems("other", now)))

	require.NoError(t, db.ClearProviderCache("binsearch"))

	got, err := db.GetCacheItems("binsearch", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := db.GetCacheItems("other", 0)
	require.NoError(t, err)
	assert.Len(t, other, 3)
}

func TestSettings(t *testing.T) {
	db := testDB(t)

	_, err := db.GetSetting("missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, db.SetSetting(model.SettingLastUpdatePrefix+"binsearch", "2026-10-17T12:00:00Z"))
	require.NoError(t, db.SetSetting(model.SettingLastUpdatePrefix+"binsearch", "2026-10-17T12:30:00Z"))

	val, err := db.GetSetting(model.SettingLastUpdatePrefix + "binsearch")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17T12:30:00Z", val)
	assert.Equal(t, "SQLite", db.DatabaseType())
}
