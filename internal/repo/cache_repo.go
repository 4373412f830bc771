// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the web-search
// cache. Expiry is enforced at read time: lookups only consider rows whose
// expires_at is in the future, and PurgeExpiredCache reclaims dead rows.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pmfonseca/wedding-assistant/internal/domain"
)

// GetCacheEntry returns the freshest non-expired cache row for queryHash,
// or ErrNotFound.
func GetCacheEntry(ctx context.Context, db *gorm.DB, queryHash string, now time.Time) (*domain.SearchCacheEntry, error) {
	var e domain.SearchCacheEntry
	err := db.WithContext(ctx).
		Where("query_hash = ? AND expires_at > ?", queryHash, now).
		Order("created_at desc").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertCacheEntry stores results for queryHash, replacing any existing rows
// for the same hash so repeat misses do not accumulate stale duplicates.
func UpsertCacheEntry(ctx context.Context, db *gorm.DB, query, queryHash, results string, ttl time.Duration) (*domain.SearchCacheEntry, error) {
	now := time.Now().UTC()
	e := &domain.SearchCacheEntry{
		ID:        uuid.NewString(),
		Query:     query,
		QueryHash: queryHash,
		Results:   results,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("query_hash = ?", queryHash).Delete(&domain.SearchCacheEntry{}).Error; err != nil {
			return err
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// RecordCacheHit bumps hit_count and stamps last_accessed_at for a row.
// A missing row is not an error; the hit is simply lost.
func RecordCacheHit(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.SearchCacheEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"hit_count":        gorm.Expr("hit_count + 1"),
			"last_accessed_at": now,
		}).Error
}

// PurgeExpiredCache deletes rows whose TTL has elapsed and returns the count.
func PurgeExpiredCache(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.SearchCacheEntry{})
	return res.RowsAffected, res.Error
}

// CacheStats reports row count, cumulative hits, and the most recent access.
func CacheStats(ctx context.Context, db *gorm.DB) (entries int64, hits int64, lastAccess *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.SearchCacheEntry{})
	if err = q.Count(&entries).Error; err != nil {
		return 0, 0, nil, err
	}
	if entries == 0 {
		return 0, 0, nil, nil
	}
	var row struct {
		Hits           int64
		LastAccessedAt *time.Time
	}
	err = db.WithContext(ctx).
		Model(&domain.SearchCacheEntry{}).
		Select("COALESCE(SUM(hit_count),0) AS hits, MAX(last_accessed_at) AS last_accessed_at").
		Scan(&row).Error
	if err != nil {
		return 0, 0, nil, err
	}
	return entries, row.Hits, row.LastAccessedAt, nil
}
