package store

import (
	"time"

	"contentforge/pkg/domain"
)

// AppendUsage records one provider accounting entry.
func (s *GormStore) AppendUsage(rec domain.UsageRecord) error {
	model := UsageRecordModel{
		UserID:     rec.UserID,
		TokensUsed: rec.TokensUsed,
		Cost:       rec.Cost,
		Model:      rec.Model,
		CreatedAt:  rec.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	return s.db.Create(&model).Error
}

// UsageStats aggregates records created at or after since, optionally
// restricted to one user.
func (s *GormStore) UsageStats(since time.Time, userID string) (domain.UsageStats, error) {
	var agg struct {
		Requests int64
		Tokens   int64
		Cost     float64
	}
	tx := s.db.Model(&UsageRecordModel{}).
		Select("count(*) as requests, coalesce(sum(tokens_used), 0) as tokens, coalesce(sum(cost), 0) as cost").
		Where("created_at >= ?", since.UTC())
	if userID != "" {
		tx = tx.Where("user_id = ?", userID)
	}
	if err := tx.Scan(&agg).Error; err != nil {
		return domain.UsageStats{}, err
	}
	stats := domain.UsageStats{
		TotalRequests: int(agg.Requests),
		TotalTokens:   int(agg.Tokens),
		TotalCost:     agg.Cost,
	}
	if stats.TotalRequests > 0 {
		stats.AvgTokensPerRequest = float64(stats.TotalTokens) / float64(stats.TotalRequests)
	}
	return stats, nil
}

// PurgeUsage deletes records older than the cutoff.
func (s *GormStore) PurgeUsage(olderThan time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", olderThan.UTC()).Delete(&UsageRecordModel{})
	return res.RowsAffected, res.Error
}
