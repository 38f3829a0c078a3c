package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"contentforge/pkg/domain"
)

// InsertBatch writes all items in one transaction.
func (s *GormStore) InsertBatch(items []domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]QueueItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, queueItemToModel(item))
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&models, 50).Error
	})
}

// ClaimPending atomically claims up to limit pending items. Candidates
// are selected in priority order, then each is claimed with a
// conditional update so two workers never process the same item.
func (s *GormStore) ClaimPending(limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	var candidates []QueueItemModel
	if err := s.db.Where("status = ?", string(domain.ItemPending)).
		Order("priority ASC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	claimed := make([]domain.QueueItem, 0, len(candidates))
	for _, model := range candidates {
		res := s.db.Model(&QueueItemModel{}).
			Where("id = ? AND status = ?", model.ID, string(domain.ItemPending)).
			Updates(map[string]any{
				"status":     string(domain.ItemProcessing),
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another worker or a cancel.
			continue
		}
		model.Status = string(domain.ItemProcessing)
		model.Attempts++
		model.StartedAt = &now
		claimed = append(claimed, queueItemFromModel(model))
	}
	return claimed, nil
}

// MarkCompleted finalizes a processing item with its result.
func (s *GormStore) MarkCompleted(id int64, result domain.GenerationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	now := time.Now().UTC()
	res := s.db.Model(&QueueItemModel{}).
		Where("id = ? AND status = ?", id, string(domain.ItemProcessing)).
		Updates(map[string]any{
			"status":       string(domain.ItemCompleted),
			"result":       raw,
			"error":        "",
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failure, requeueing unless final.
func (s *GormStore) MarkFailed(id int64, errMsg string, final bool) error {
	updates := map[string]any{
		"error": errMsg,
	}
	if final {
		updates["status"] = string(domain.ItemFailed)
		updates["completed_at"] = time.Now().UTC()
	} else {
		updates["status"] = string(domain.ItemPending)
	}
	res := s.db.Model(&QueueItemModel{}).
		Where("id = ? AND status = ?", id, string(domain.ItemProcessing)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelBatch cancels the batch's pending items.
func (s *GormStore) CancelBatch(batchID string) (int64, error) {
	res := s.db.Model(&QueueItemModel{}).
		Where("batch_id = ? AND status = ?", batchID, string(domain.ItemPending)).
		Updates(map[string]any{
			"status":       string(domain.ItemCancelled),
			"completed_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ResetFailed returns failed items to pending with attempts reset.
func (s *GormStore) ResetFailed(batchID string) (int64, error) {
	res := s.db.Model(&QueueItemModel{}).
		Where("batch_id = ? AND status = ?", batchID, string(domain.ItemFailed)).
		Updates(map[string]any{
			"status":       string(domain.ItemPending),
			"attempts":     0,
			"error":        "",
			"started_at":   nil,
			"completed_at": nil,
		})
	return res.RowsAffected, res.Error
}

// BatchStatus aggregates item counts and derives the batch state.
func (s *GormStore) BatchStatus(batchID string) (domain.BatchStatus, error) {
	type row struct {
		Status string
		N      int
	}
	var rows []row
	if err := s.db.Model(&QueueItemModel{}).
		Select("status, count(*) as n").
		Where("batch_id = ?", batchID).
		Group("status").
		Find(&rows).Error; err != nil {
		return domain.BatchStatus{}, err
	}
	status := domain.BatchStatus{BatchID: batchID}
	for _, r := range rows {
		status.Total += r.N
		switch domain.ItemStatus(r.Status) {
		case domain.ItemPending:
			status.Pending = r.N
		case domain.ItemProcessing:
			status.Processing = r.N
		case domain.ItemCompleted:
			status.Completed = r.N
		case domain.ItemFailed:
			status.Failed = r.N
		case domain.ItemCancelled:
			status.Cancelled = r.N
		}
	}
	if status.Total == 0 {
		return domain.BatchStatus{}, ErrNotFound
	}
	var first QueueItemModel
	if err := s.db.Where("batch_id = ?", batchID).
		Order("created_at ASC").Order("id ASC").
		First(&first).Error; err != nil {
		return domain.BatchStatus{}, err
	}
	status.CreatedAt = first.CreatedAt

	done := status.Completed + status.Failed + status.Cancelled
	status.Progress = float64(done) / float64(status.Total) * 100
	switch {
	case status.Pending > 0 || status.Processing > 0:
		status.Status = domain.BatchInProgress
	case status.Cancelled > 0 && status.Completed == 0 && status.Failed == 0:
		status.Status = domain.BatchCancelled
	case status.Failed > 0 || status.Cancelled > 0:
		status.Status = domain.BatchCompletedWithErrors
	default:
		status.Status = domain.BatchCompleted
	}
	if status.Status != domain.BatchInProgress {
		var last QueueItemModel
		err := s.db.Where("batch_id = ? AND completed_at IS NOT NULL", batchID).
			Order("completed_at DESC").
			First(&last).Error
		if err == nil {
			status.CompletedAt = last.CompletedAt
		} else if err != gorm.ErrRecordNotFound {
			return domain.BatchStatus{}, err
		}
	}
	return status, nil
}

// ListBatchItems returns a batch's items in submission order.
func (s *GormStore) ListBatchItems(batchID string) ([]domain.QueueItem, error) {
	var models []QueueItemModel
	if err := s.db.Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.QueueItem, 0, len(models))
	for _, m := range models {
		items = append(items, queueItemFromModel(m))
	}
	return items, nil
}

// PendingCount reports how many items await processing.
func (s *GormStore) PendingCount() (int64, error) {
	var count int64
	err := s.db.Model(&QueueItemModel{}).
		Where("status = ?", string(domain.ItemPending)).
		Count(&count).Error
	return count, err
}

// QueueStats aggregates lifetime counts and processing health.
func (s *GormStore) QueueStats() (QueueStats, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := s.db.Model(&QueueItemModel{}).
		Select("status, count(*) as n").
		Group("status").
		Find(&rows).Error; err != nil {
		return QueueStats{}, err
	}
	var stats QueueStats
	for _, r := range rows {
		stats.Total += r.N
		switch domain.ItemStatus(r.Status) {
		case domain.ItemPending:
			stats.Pending = r.N
		case domain.ItemProcessing:
			stats.Processing = r.N
		case domain.ItemCompleted:
			stats.Completed = r.N
		case domain.ItemFailed:
			stats.Failed = r.N
		case domain.ItemCancelled:
			stats.Cancelled = r.N
		}
	}
	if finished := stats.Completed + stats.Failed; finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished)
	}

	// Averaging timestamp deltas in SQL is not portable across the
	// postgres and sqlite drivers, so it happens here.
	var spans []QueueItemModel
	if err := s.db.Select("started_at", "completed_at").
		Where("status = ? AND started_at IS NOT NULL AND completed_at IS NOT NULL", string(domain.ItemCompleted)).
		Find(&spans).Error; err != nil {
		return QueueStats{}, err
	}
	if len(spans) > 0 {
		var total time.Duration
		for _, span := range spans {
			total += span.CompletedAt.Sub(*span.StartedAt)
		}
		stats.AvgProcessingSeconds = total.Seconds() / float64(len(spans))
	}
	return stats, nil
}

// PurgeFinished deletes finished items older than the cutoff.
func (s *GormStore) PurgeFinished(olderThan time.Time) (int64, error) {
	res := s.db.Where("status IN ? AND created_at < ?",
		[]string{string(domain.ItemCompleted), string(domain.ItemFailed), string(domain.ItemCancelled)},
		olderThan.UTC()).
		Delete(&QueueItemModel{})
	return res.RowsAffected, res.Error
}

func queueItemToModel(item domain.QueueItem) QueueItemModel {
	model := QueueItemModel{
		ID:          item.ID,
		BatchID:     item.BatchID,
		UserID:      item.UserID,
		Prompt:      item.Request.Prompt,
		ContentType: string(item.Request.ContentType),
		SEOEnabled:  item.Request.SEOEnabled,
		Model:       item.Request.Model,
		Temperature: item.Request.Temperature,
		MaxTokens:   item.Request.MaxTokens,
		Priority:    item.Request.Priority,
		Status:      string(item.Status),
		Attempts:    item.Attempts,
		MaxAttempts: item.MaxAttempts,
		Error:       item.Error,
		CreatedAt:   item.CreatedAt,
		StartedAt:   item.StartedAt,
		CompletedAt: item.CompletedAt,
	}
	if item.Result != nil {
		raw, _ := json.Marshal(item.Result)
		model.Result = raw
	}
	return model
}

func queueItemFromModel(m QueueItemModel) domain.QueueItem {
	item := domain.QueueItem{
		ID:      m.ID,
		BatchID: m.BatchID,
		UserID:  m.UserID,
		Request: domain.GenerationRequest{
			Prompt:      m.Prompt,
			ContentType: domain.ContentType(m.ContentType),
			SEOEnabled:  m.SEOEnabled,
			Model:       m.Model,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
			Priority:    m.Priority,
		},
		Status:      domain.ItemStatus(m.Status),
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
	if len(m.Result) > 0 {
		var result domain.GenerationResult
		if err := json.Unmarshal(m.Result, &result); err == nil {
			item.Result = &result
		}
	}
	return item
}
