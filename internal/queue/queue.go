// Package queue runs bulk generation batches against the SQL-backed
// work queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"contentforge/internal/alert"
	"contentforge/internal/schedule"
	"contentforge/internal/store"
	"contentforge/pkg/ai"
	"contentforge/pkg/domain"
)

// processTimer names the self-rescheduling pass in the scheduler.
const processTimer = "queue:process"

var (
	ErrEmptyBatch    = errors.New("batch has no operations")
	ErrBatchTooLarge = errors.New("batch exceeds the maximum number of operations")
	ErrEmptyPromptAt = errors.New("batch operation has an empty prompt")
)

// ContentGenerator produces content for one queue item. *app.App
// implements it, which gives queued items the same cache and
// accounting path as interactive requests.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, userID string, req domain.GenerationRequest) (domain.GenerationResult, bool, error)
}

// Config tunes the queue service.
type Config struct {
	// BatchSize is the number of items claimed per pass.
	BatchSize int
	// MaxAttempts before an item is marked failed for good.
	MaxAttempts int
	// Reschedule is the delay between passes while work remains.
	Reschedule time.Duration
	// MaxBatchOperations bounds one Submit call.
	MaxBatchOperations int
	// RetentionDays for finished items.
	RetentionDays int
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Reschedule <= 0 {
		c.Reschedule = 30 * time.Second
	}
	if c.MaxBatchOperations <= 0 {
		c.MaxBatchOperations = 50
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
}

// Service owns batch submission and background processing.
type Service struct {
	repo    store.QueueRepository
	gen     ContentGenerator
	sched   schedule.Scheduler
	alerter *alert.Alerter
	cfg     Config
	logger  *slog.Logger
}

// New builds a queue service.
func New(repo store.QueueRepository, gen ContentGenerator, sched schedule.Scheduler, alerter *alert.Alerter, cfg Config, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		gen:     gen,
		sched:   sched,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Submit validates and persists a batch, returning its ID. Processing
// starts on the next scheduled pass.
func (s *Service) Submit(userID string, requests []domain.GenerationRequest) (string, error) {
	if len(requests) == 0 {
		return "", ErrEmptyBatch
	}
	if len(requests) > s.cfg.MaxBatchOperations {
		return "", ErrBatchTooLarge
	}
	for i, req := range requests {
		if req.Prompt == "" {
			return "", fmt.Errorf("%w: operation %d", ErrEmptyPromptAt, i)
		}
	}
	batchID := uuid.NewString()
	now := time.Now().UTC()
	items := make([]domain.QueueItem, 0, len(requests))
	for i, req := range requests {
		items = append(items, domain.QueueItem{
			BatchID: batchID,
			UserID:  userID,
			Request: req,
			Status:  domain.ItemPending,
			// Nanosecond offsets keep submission order stable within
			// the same priority.
			CreatedAt:   now.Add(time.Duration(i) * time.Nanosecond),
			MaxAttempts: s.cfg.MaxAttempts,
		})
	}
	if err := s.repo.InsertBatch(items); err != nil {
		return "", fmt.Errorf("enqueue batch: %w", err)
	}
	s.logger.Info("batch submitted", "batchId", batchID, "items", len(items), "userId", userID)
	s.kick()
	return batchID, nil
}

// kick schedules an immediate pass. A pending timer with the same
// name is replaced, so repeated kicks coalesce.
func (s *Service) kick() {
	s.sched.After(0, processTimer, func() {
		s.ProcessPass(context.Background())
	})
}

// Start arms the recurring pass. Call once at boot to pick up items
// left over from a previous run.
func (s *Service) Start() {
	s.kick()
}

// Stop cancels any scheduled pass.
func (s *Service) Stop() {
	s.sched.Cancel(processTimer)
}

// ProcessPass claims one batch of pending items and processes them in
// order, then reschedules itself while work remains.
func (s *Service) ProcessPass(ctx context.Context) {
	items, err := s.repo.ClaimPending(s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("queue claim failed", "error", err)
		s.sched.After(s.cfg.Reschedule, processTimer, func() {
			s.ProcessPass(context.Background())
		})
		return
	}
	for _, item := range items {
		s.processItem(ctx, item)
	}
	pending, err := s.repo.PendingCount()
	if err != nil {
		s.logger.Error("pending count failed", "error", err)
		return
	}
	if pending > 0 {
		s.sched.After(s.cfg.Reschedule, processTimer, func() {
			s.ProcessPass(context.Background())
		})
	}
}

func (s *Service) processItem(ctx context.Context, item domain.QueueItem) {
	result, cached, err := s.gen.GenerateContent(ctx, item.UserID, item.Request)
	if err == nil {
		if markErr := s.repo.MarkCompleted(item.ID, result); markErr != nil {
			s.logger.Error("complete item failed", "itemId", item.ID, "error", markErr)
		}
		s.logger.Debug("item completed", "itemId", item.ID, "cached", cached)
		return
	}

	final := item.Attempts >= item.MaxAttempts || !ai.Retryable(err)
	if markErr := s.repo.MarkFailed(item.ID, err.Error(), final); markErr != nil {
		s.logger.Error("fail item failed", "itemId", item.ID, "error", markErr)
		return
	}
	if final {
		s.logger.Warn("item failed permanently", "itemId", item.ID, "batchId", item.BatchID,
			"attempts", item.Attempts, "error", err)
		if alertErr := s.alerter.Notify(ctx, "queue_item_failed", item.BatchID,
			"item "+strconv.FormatInt(item.ID, 10)+": "+err.Error()); alertErr != nil {
			s.logger.Warn("alert delivery failed", "error", alertErr)
		}
		return
	}
	s.logger.Info("item requeued", "itemId", item.ID, "attempt", item.Attempts, "error", err)
}

// Stats reports lifetime queue throughput.
func (s *Service) Stats() (store.QueueStats, error) {
	return s.repo.QueueStats()
}

// Status reports aggregate progress for a batch.
func (s *Service) Status(batchID string) (domain.BatchStatus, error) {
	return s.repo.BatchStatus(batchID)
}

// Items returns a batch's items with results.
func (s *Service) Items(batchID string) ([]domain.QueueItem, error) {
	return s.repo.ListBatchItems(batchID)
}

// Cancel stops the batch's pending items. Items already processing
// run to completion.
func (s *Service) Cancel(batchID string) (int64, error) {
	return s.repo.CancelBatch(batchID)
}

// RetryFailed requeues a batch's failed items with a fresh attempt
// budget and kicks processing.
func (s *Service) RetryFailed(batchID string) (int64, error) {
	n, err := s.repo.ResetFailed(batchID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.kick()
	}
	return n, nil
}

// CleanupOld drops finished items past the retention window.
func (s *Service) CleanupOld() (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	return s.repo.PurgeFinished(cutoff)
}
