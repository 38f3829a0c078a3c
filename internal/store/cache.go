package store

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contentforge/pkg/domain"
)

// PutCacheEntry inserts or refreshes a durable cache entry.
func (s *GormStore) PutCacheEntry(entry CacheEntry) error {
	model := cacheEntryToModel(entry)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_type", "payload", "compressed", "expires_at"}),
	}).Create(&model).Error
}

// GetCacheEntry returns the entry when present and unexpired.
func (s *GormStore) GetCacheEntry(key string, now time.Time) (CacheEntry, bool, error) {
	var model CacheEntryModel
	if err := s.db.First(&model, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return CacheEntry{}, false, nil
		}
		return CacheEntry{}, false, err
	}
	if !model.ExpiresAt.After(now.UTC()) {
		return CacheEntry{}, false, nil
	}
	return cacheEntryFromModel(model), true, nil
}

// TouchCacheHit increments the entry's hit counter.
func (s *GormStore) TouchCacheHit(key string) error {
	return s.db.Model(&CacheEntryModel{}).
		Where("key = ?", key).
		Update("hit_count", gorm.Expr("hit_count + 1")).Error
}

// DeleteCacheEntry removes one entry. Missing keys are not an error.
func (s *GormStore) DeleteCacheEntry(key string) error {
	return s.db.Delete(&CacheEntryModel{}, "key = ?", key).Error
}

// ClearCache removes entries, optionally filtered by content type.
func (s *GormStore) ClearCache(contentType domain.ContentType) (int64, error) {
	tx := s.db
	if contentType != "" {
		tx = tx.Where("content_type = ?", string(contentType))
	} else {
		tx = tx.Where("1 = 1")
	}
	res := tx.Delete(&CacheEntryModel{})
	return res.RowsAffected, res.Error
}

// PurgeExpiredCache removes entries past their expiry.
func (s *GormStore) PurgeExpiredCache(now time.Time) (int64, error) {
	res := s.db.Where("expires_at <= ?", now.UTC()).Delete(&CacheEntryModel{})
	return res.RowsAffected, res.Error
}

// CacheStats returns entry, expiry and cumulative hit counts.
func (s *GormStore) CacheStats(now time.Time) (CacheStats, error) {
	var stats CacheStats
	if err := s.db.Model(&CacheEntryModel{}).Count(&stats.Entries).Error; err != nil {
		return CacheStats{}, err
	}
	if err := s.db.Model(&CacheEntryModel{}).
		Where("expires_at <= ?", now.UTC()).
		Count(&stats.Expired).Error; err != nil {
		return CacheStats{}, err
	}
	stats.Active = stats.Entries - stats.Expired
	var hits struct{ Total int64 }
	if err := s.db.Model(&CacheEntryModel{}).
		Select("coalesce(sum(hit_count), 0) as total").
		Scan(&hits).Error; err != nil {
		return CacheStats{}, err
	}
	stats.Hits = hits.Total
	return stats, nil
}

func cacheEntryToModel(entry CacheEntry) CacheEntryModel {
	return CacheEntryModel{
		Key:         entry.Key,
		ContentType: string(entry.ContentType),
		Payload:     entry.Payload,
		Compressed:  entry.Compressed,
		HitCount:    entry.HitCount,
		ExpiresAt:   entry.ExpiresAt,
		CreatedAt:   entry.CreatedAt,
	}
}

func cacheEntryFromModel(m CacheEntryModel) CacheEntry {
	return CacheEntry{
		Key:         m.Key,
		ContentType: domain.ContentType(m.ContentType),
		Payload:     m.Payload,
		Compressed:  m.Compressed,
		HitCount:    m.HitCount,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
	}
}
