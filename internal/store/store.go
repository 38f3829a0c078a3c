// Package store persists queue items, cached generations, templates,
// usage records, and settings behind GORM.
package store

import (
	"errors"
	"time"

	"contentforge/pkg/domain"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when a template restore targets a
	// version that does not exist.
	ErrVersionConflict = errors.New("store: version not found")
)

// QueueRepository persists bulk generation items.
type QueueRepository interface {
	// InsertBatch writes all items transactionally. Either every item
	// lands or none do.
	InsertBatch(items []domain.QueueItem) error
	// ClaimPending atomically moves up to limit pending items to
	// processing, ordered by priority then submission time. Items
	// claimed by a concurrent caller are skipped, never double-claimed.
	ClaimPending(limit int) ([]domain.QueueItem, error)
	// MarkCompleted finalizes a processing item with its result.
	MarkCompleted(id int64, result domain.GenerationResult) error
	// MarkFailed records a failure. When final is false the item goes
	// back to pending for another attempt; otherwise it stays failed.
	MarkFailed(id int64, errMsg string, final bool) error
	// CancelBatch cancels pending items only. In-flight and finished
	// items keep their state.
	CancelBatch(batchID string) (int64, error)
	// ResetFailed returns failed items of a batch to pending with a
	// fresh attempt budget.
	ResetFailed(batchID string) (int64, error)
	// BatchStatus aggregates item counts for a batch.
	BatchStatus(batchID string) (domain.BatchStatus, error)
	// ListBatchItems returns a batch's items in submission order.
	ListBatchItems(batchID string) ([]domain.QueueItem, error)
	// PendingCount reports how many items await processing.
	PendingCount() (int64, error)
	// QueueStats aggregates lifetime queue health numbers.
	QueueStats() (QueueStats, error)
	// PurgeFinished deletes completed, failed and cancelled items older
	// than the cutoff.
	PurgeFinished(olderThan time.Time) (int64, error)
}

// QueueStats summarizes queue throughput across all batches.
type QueueStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	// SuccessRate is completed over completed+failed, in [0,1].
	SuccessRate float64 `json:"successRate"`
	// AvgProcessingSeconds averages claim-to-completion time.
	AvgProcessingSeconds float64 `json:"avgProcessingSeconds"`
}

// CacheEntry is one persisted generation in the durable cache tier.
type CacheEntry struct {
	Key         string
	ContentType domain.ContentType
	Payload     string
	Compressed  bool
	HitCount    int64
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// CacheRepository is the durable second tier behind the Redis cache.
type CacheRepository interface {
	PutCacheEntry(entry CacheEntry) error
	// GetCacheEntry returns the entry when present and unexpired.
	GetCacheEntry(key string, now time.Time) (CacheEntry, bool, error)
	TouchCacheHit(key string) error
	DeleteCacheEntry(key string) error
	// ClearCache removes entries, optionally filtered by content type.
	ClearCache(contentType domain.ContentType) (int64, error)
	// PurgeExpiredCache removes entries past their expiry.
	PurgeExpiredCache(now time.Time) (int64, error)
	CacheStats(now time.Time) (CacheStats, error)
}

// CacheStats reports durable-tier cache counters.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
	Hits    int64 `json:"hits"`
}

// TemplateRepository stores prompt templates and their version history.
type TemplateRepository interface {
	// CreateTemplate inserts the template and its initial active version.
	CreateTemplate(t domain.Template, createdBy string) (domain.Template, error)
	// UpdateTemplate snapshots a new active version with the changes.
	UpdateTemplate(t domain.Template, createdBy, changeLog string) (domain.Template, error)
	GetTemplate(id int64) (domain.Template, error)
	ListTemplates() ([]domain.Template, error)
	DeleteTemplate(id int64) error
	// ListVersions returns version history, newest first.
	ListVersions(templateID int64) ([]domain.TemplateVersion, error)
	// RestoreVersion copies an old version into a new active one.
	RestoreVersion(templateID int64, versionNumber int, createdBy string) (domain.Template, error)
}

// UsageRepository is the append-only provider accounting log.
type UsageRepository interface {
	AppendUsage(rec domain.UsageRecord) error
	// UsageStats aggregates records created at or after since. An empty
	// userID aggregates across all users.
	UsageStats(since time.Time, userID string) (domain.UsageStats, error)
	PurgeUsage(olderThan time.Time) (int64, error)
}

// SettingsRepository holds small key/value service state, such as the
// encrypted provider API key.
type SettingsRepository interface {
	PutSetting(key, value string) error
	GetSetting(key string) (string, bool, error)
	DeleteSetting(key string) error
}

// Store is the combined persistence surface.
type Store interface {
	QueueRepository
	CacheRepository
	TemplateRepository
	UsageRepository
	SettingsRepository
}
