package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contentforge/internal/alert"
	"contentforge/internal/cache"
	"contentforge/internal/secure"
	"contentforge/internal/store"
	"contentforge/pkg/ai"
	"contentforge/pkg/domain"
)

type fakeGenerator struct {
	calls    atomic.Int64
	response ai.ChatResponse
	err      error
}

func (f *fakeGenerator) ChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ai.ChatResponse{}, f.err
	}
	return f.response, nil
}

type fakeKeys struct {
	validateErr error
	current     string
}

func (f *fakeKeys) ValidateKey(ctx context.Context, key string) error { return f.validateErr }
func (f *fakeKeys) SetAPIKey(key string)                              { f.current = key }

type testEnv struct {
	app   *App
	gen   *fakeGenerator
	store *store.GormStore
	keys  *fakeKeys
}

func newTestApp(t *testing.T, webhookURL string) *testEnv {
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
	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	box, err := secure.LoadOrCreateKey(filepath.Join(t.TempDir(), "test.key"))
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	gen := &fakeGenerator{
		response: ai.ChatResponse{
			Content: `{"title":"Generated","content":"<p>body</p>"}`,
			Model:   "gpt-3.5-turbo",
			Usage:   ai.Usage{PromptTokens: 100, CompletionTokens: 200, TotalTokens: 300},
		},
	}
	keys := &fakeKeys{}
	application := New(Options{
		Generator: gen,
		Keys:      keys,
		Cache:     cache.New(redisClient, repo, "test:cache", nil),
		Usage:     repo,
		Settings:  repo,
		Box:       box,
		Alerter:   alert.New(redisClient, "test:alerts", webhookURL, nil),
		Defaults: domain.GenerationRequest{
			ContentType: domain.ContentPost,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		MaxPrompt: 5000,
	})
	return &testEnv{app: application, gen: gen, store: repo, keys: keys}
}

func TestGenerateContentCachesSecondCall(t *testing.T) {
	env := newTestApp(t, "")
	ctx := context.Background()
	req := domain.GenerationRequest{Prompt: "Write about Go", ContentType: domain.ContentPost}

	result, cached, err := env.app.GenerateContent(ctx, "u1", req)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if cached {
		t.Fatalf("first call should not be cached")
	}
	if result.Title != "Generated" {
		t.Fatalf("result = %+v", result)
	}

	_, cached, err = env.app.GenerateContent(ctx, "u1", req)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !cached {
		t.Fatalf("second call should hit the cache")
	}
	if env.gen.calls.Load() != 1 {
		t.Fatalf("provider called %d times, want 1", env.gen.calls.Load())
	}

	stats, err := env.app.Stats(time.Now().Add(-time.Hour), "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Usage.TotalRequests != 1 || stats.Usage.TotalTokens != 300 {
		t.Fatalf("usage = %+v", stats.Usage)
	}
	if stats.Cache.Entries != 1 || stats.Cache.Hits != 1 {
		t.Fatalf("cache stats = %+v", stats.Cache)
	}
}

func TestGenerateContentValidation(t *testing.T) {
	env := newTestApp(t, "")
	ctx := context.Background()

	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{Prompt: "   "}); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("empty prompt err = %v", err)
	}
	long := make([]byte, 6000)
	for i := range long {
		long[i] = 'a'
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{Prompt: string(long)}); !errors.Is(err, ErrPromptTooLong) {
		t.Fatalf("long prompt err = %v", err)
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{
		Prompt: "ok", ContentType: "banner",
	}); !errors.Is(err, ErrInvalidContentType) {
		t.Fatalf("bad content type err = %v", err)
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{
		Prompt: "ok", Temperature: 5.0,
	}); !errors.Is(err, ErrInvalidTemperature) {
		t.Fatalf("out-of-range temperature err = %v", err)
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{
		Prompt: "ok", Temperature: -0.1,
	}); !errors.Is(err, ErrInvalidTemperature) {
		t.Fatalf("negative temperature err = %v", err)
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{
		Prompt: "ok", MaxTokens: -100,
	}); !errors.Is(err, ErrInvalidMaxTokens) {
		t.Fatalf("negative max tokens err = %v", err)
	}
	if _, _, err := env.app.GenerateContent(ctx, "u1", domain.GenerationRequest{
		Prompt: "ok", MaxTokens: 9000,
	}); !errors.Is(err, ErrInvalidMaxTokens) {
		t.Fatalf("oversized max tokens err = %v", err)
	}
	if env.gen.calls.Load() != 0 {
		t.Fatalf("provider should not be called for invalid requests")
	}
}

func TestGenerateContentSanitizesOutput(t *testing.T) {
	env := newTestApp(t, "")
	env.gen.response = ai.ChatResponse{
		Content: `{"title":"T","content":"<p>ok</p><script>alert(1)</script>"}`,
		Model:   "gpt-3.5-turbo",
		Usage:   ai.Usage{TotalTokens: 10},
	}
	result, _, err := env.app.GenerateContent(context.Background(), "u1", domain.GenerationRequest{Prompt: "Write about Go"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Content != "<p>ok</p>" {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestGenerateContentAlertsOnCriticalFailure(t *testing.T) {
	var alerts atomic.Int64
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alerts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	env := newTestApp(t, webhook.URL)
	env.gen.err = ai.ErrInvalidAPIKey
	_, _, err := env.app.GenerateContent(context.Background(), "u1", domain.GenerationRequest{Prompt: "Write about Go"})
	if !errors.Is(err, ai.ErrInvalidAPIKey) {
		t.Fatalf("err = %v", err)
	}
	if alerts.Load() != 1 {
		t.Fatalf("alerts = %d, want 1", alerts.Load())
	}
}

func TestAPIKeyRotationRoundTrip(t *testing.T) {
	env := newTestApp(t, "")
	ctx := context.Background()

	if err := env.app.LoadAPIKey(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("load before store err = %v", err)
	}
	if err := env.app.UpdateAPIKey(ctx, "sk-new-key"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if env.keys.current != "sk-new-key" {
		t.Fatalf("live key = %q", env.keys.current)
	}

	// The stored copy must be sealed, not plaintext.
	sealed, found, err := env.store.GetSetting("provider_api_key")
	if err != nil || !found {
		t.Fatalf("setting lookup: %v %v", found, err)
	}
	if sealed == "sk-new-key" {
		t.Fatalf("api key stored in plaintext")
	}

	env.keys.current = ""
	if err := env.app.LoadAPIKey(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if env.keys.current != "sk-new-key" {
		t.Fatalf("restored key = %q", env.keys.current)
	}

	env.keys.validateErr = ai.ErrInvalidAPIKey
	if err := env.app.UpdateAPIKey(ctx, "sk-bad"); !errors.Is(err, ai.ErrInvalidAPIKey) {
		t.Fatalf("invalid key err = %v", err)
	}
}
