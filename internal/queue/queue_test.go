package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contentforge/internal/schedule"
	"contentforge/internal/store"
	"contentforge/pkg/ai"
	"contentforge/pkg/domain"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	// fail maps prompt to the error returned for it.
	fail map[string]error
}

func (g *scriptedGenerator) GenerateContent(ctx context.Context, userID string, req domain.GenerationRequest) (domain.GenerationResult, bool, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if err, ok := g.fail[req.Prompt]; ok {
		return domain.GenerationResult{}, false, err
	}
	return domain.GenerationResult{Title: "ok", Content: "<p>" + req.Prompt + "</p>"}, false, nil
}

func (g *scriptedGenerator) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}

type env struct {
	svc   *Service
	gen   *scriptedGenerator
	sched *schedule.ManualScheduler
	repo  *store.GormStore
}

func newTestService(t *testing.T, cfg Config) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := store.NewGormStoreWithDB(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	gen := &scriptedGenerator{fail: map[string]error{}}
	sched := schedule.NewManualScheduler()
	return &env{
		svc:   New(repo, gen, sched, nil, cfg, nil),
		gen:   gen,
		sched: sched,
		repo:  repo,
	}
}

func reqs(prompts ...string) []domain.GenerationRequest {
	out := make([]domain.GenerationRequest, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, domain.GenerationRequest{Prompt: p, ContentType: domain.ContentPost})
	}
	return out
}

func TestSubmitValidation(t *testing.T) {
	e := newTestService(t, Config{})
	if _, err := e.svc.Submit("u1", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("empty err = %v", err)
	}
	big := make([]domain.GenerationRequest, 51)
	for i := range big {
		big[i] = domain.GenerationRequest{Prompt: "p"}
	}
	if _, err := e.svc.Submit("u1", big); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("oversized err = %v", err)
	}
	if _, err := e.svc.Submit("u1", reqs("ok", "")); !errors.Is(err, ErrEmptyPromptAt) {
		t.Fatalf("empty prompt err = %v", err)
	}

	// Rejected batches must leave no rows behind, even for the valid
	// items ahead of the bad one.
	pending, err := e.repo.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if pending != 0 {
		t.Fatalf("rejected submits persisted %d items", pending)
	}
	if _, ok := e.sched.Delay(processTimer); ok {
		t.Fatalf("rejected submits should not schedule a pass")
	}
}

func TestSubmitAndProcessBatch(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 2})
	batchID, err := e.svc.Submit("u1", reqs("a", "b", "c"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Submit arms an immediate pass; two items per pass, so three
	// passes drain the batch and the third finds nothing pending.
	if !e.sched.Fire(processTimer) {
		t.Fatalf("submit should schedule a pass")
	}
	status, err := e.svc.Status(batchID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Completed != 2 || status.Pending != 1 || status.Status != domain.BatchInProgress {
		t.Fatalf("mid status = %+v", status)
	}
	if d, ok := e.sched.Delay(processTimer); !ok || d != 30*time.Second {
		t.Fatalf("reschedule delay = %v, %v", d, ok)
	}

	if !e.sched.Fire(processTimer) {
		t.Fatalf("expected rescheduled pass")
	}
	status, _ = e.svc.Status(batchID)
	if status.Status != domain.BatchCompleted || status.Progress != 100 {
		t.Fatalf("final status = %+v", status)
	}
	if _, ok := e.sched.Delay(processTimer); ok {
		t.Fatalf("drained queue should not reschedule")
	}
	if got := e.gen.seen(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("processed order = %v", got)
	}

	items, err := e.svc.Items(batchID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items[1].Result == nil || items[1].Result.Content != "<p>b</p>" {
		t.Fatalf("item result = %+v", items[1])
	}
}

func TestPriorityOrderAcrossBatch(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 10})
	requests := []domain.GenerationRequest{
		{Prompt: "low-1", Priority: 5},
		{Prompt: "high-1", Priority: 1},
		{Prompt: "low-2", Priority: 5},
		{Prompt: "high-2", Priority: 1},
	}
	if _, err := e.svc.Submit("u1", requests); err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.sched.Fire(processTimer)
	want := []string{"high-1", "high-2", "low-1", "low-2"}
	got := e.gen.seen()
	if len(got) != len(want) {
		t.Fatalf("processed %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRetryableFailureExhaustsAttempts(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 10, MaxAttempts: 3})
	e.gen.fail["boom"] = ai.ErrProviderUnavailable
	batchID, err := e.svc.Submit("u1", reqs("boom"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for pass := 1; pass <= 3; pass++ {
		if !e.sched.Fire(processTimer) {
			t.Fatalf("pass %d not scheduled", pass)
		}
	}
	status, _ := e.svc.Status(batchID)
	if status.Failed != 1 || status.Status != domain.BatchCompletedWithErrors {
		t.Fatalf("status after exhaustion = %+v", status)
	}
	if got := len(e.gen.seen()); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if _, ok := e.sched.Delay(processTimer); ok {
		t.Fatalf("exhausted queue should stop rescheduling")
	}
}

func TestNonRetryableFailureFailsImmediately(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 10, MaxAttempts: 3})
	e.gen.fail["bad"] = ai.ErrInvalidAPIKey
	batchID, _ := e.svc.Submit("u1", reqs("bad"))
	e.sched.Fire(processTimer)

	status, _ := e.svc.Status(batchID)
	if status.Failed != 1 {
		t.Fatalf("status = %+v", status)
	}
	if got := len(e.gen.seen()); got != 1 {
		t.Fatalf("non-retryable error retried %d times", got)
	}
}

func TestCancelAffectsPendingOnly(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 1})
	batchID, _ := e.svc.Submit("u1", reqs("done", "waiting"))
	e.sched.Fire(processTimer)

	n, err := e.svc.Cancel(batchID)
	if err != nil || n != 1 {
		t.Fatalf("cancel = %d, %v", n, err)
	}
	status, _ := e.svc.Status(batchID)
	if status.Completed != 1 || status.Cancelled != 1 {
		t.Fatalf("status = %+v", status)
	}
	if status.Status != domain.BatchCompletedWithErrors {
		t.Fatalf("batch status = %s", status.Status)
	}
}

func TestRetryFailedResetsAndProcesses(t *testing.T) {
	e := newTestService(t, Config{BatchSize: 10, MaxAttempts: 1})
	e.gen.fail["flaky"] = ai.ErrProviderUnavailable
	batchID, _ := e.svc.Submit("u1", reqs("flaky"))
	e.sched.Fire(processTimer)

	status, _ := e.svc.Status(batchID)
	if status.Failed != 1 {
		t.Fatalf("precondition failed: %+v", status)
	}

	delete(e.gen.fail, "flaky")
	n, err := e.svc.RetryFailed(batchID)
	if err != nil || n != 1 {
		t.Fatalf("retry = %d, %v", n, err)
	}
	if !e.sched.Fire(processTimer) {
		t.Fatalf("retry should kick processing")
	}
	status, _ = e.svc.Status(batchID)
	if status.Status != domain.BatchCompleted {
		t.Fatalf("status after retry = %+v", status)
	}
}
