// Package app orchestrates content generation: validation, caching,
// provider calls, parsing, sanitization and usage accounting.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentforge/internal/alert"
	"contentforge/internal/cache"
	"contentforge/internal/secure"
	"contentforge/internal/store"
	"contentforge/pkg/ai"
	"contentforge/pkg/domain"
)

// settingAPIKey is the settings-store key holding the sealed provider
// API key.
const settingAPIKey = "provider_api_key"

// Generator is the provider surface the app depends on. *ai.Client
// implements it; tests substitute fakes.
type Generator interface {
	ChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error)
}

// KeyManager validates and swaps the provider key at runtime.
type KeyManager interface {
	ValidateKey(ctx context.Context, key string) error
	SetAPIKey(key string)
}

// ModelLister fetches the provider's model catalog.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// App wires the generation pipeline together.
type App struct {
	generator Generator
	keys      KeyManager
	models    ModelLister
	cache     *cache.Cache
	usage     store.UsageRepository
	settings  store.SettingsRepository
	box       *secure.Box
	alerter   *alert.Alerter
	defaults  domain.GenerationRequest
	maxPrompt int
	logger    *slog.Logger
}

// Options collects the App dependencies.
type Options struct {
	Generator Generator
	Keys      KeyManager
	Models    ModelLister
	Cache     *cache.Cache
	Usage     store.UsageRepository
	Settings  store.SettingsRepository
	Box       *secure.Box
	Alerter   *alert.Alerter
	Defaults  domain.GenerationRequest
	MaxPrompt int
	Logger    *slog.Logger
}

// New builds an App.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxPrompt <= 0 {
		opts.MaxPrompt = 5000
	}
	return &App{
		generator: opts.Generator,
		keys:      opts.Keys,
		models:    opts.Models,
		cache:     opts.Cache,
		usage:     opts.Usage,
		settings:  opts.Settings,
		box:       opts.Box,
		alerter:   opts.Alerter,
		defaults:  opts.Defaults,
		maxPrompt: opts.MaxPrompt,
		logger:    opts.Logger,
	}
}

// ValidateRequest normalizes and checks a generation request.
func (a *App) ValidateRequest(req domain.GenerationRequest) (domain.GenerationRequest, error) {
	req.Prompt = SanitizePrompt(req.Prompt)
	if req.Prompt == "" {
		return req, ErrEmptyPrompt
	}
	if len(req.Prompt) > a.maxPrompt {
		return req, ErrPromptTooLong
	}
	req = cache.Normalize(req, a.defaults)
	if !domain.ValidContentType(req.ContentType) {
		return req, ErrInvalidContentType
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return req, ErrInvalidTemperature
	}
	if req.MaxTokens < 100 || req.MaxTokens > 8000 {
		return req, ErrInvalidMaxTokens
	}
	return req, nil
}

// GenerateContent runs the full pipeline for one request. The cached
// flag reports whether the result was served without a provider call.
func (a *App) GenerateContent(ctx context.Context, userID string, req domain.GenerationRequest) (domain.GenerationResult, bool, error) {
	req, err := a.ValidateRequest(req)
	if err != nil {
		return domain.GenerationResult{}, false, err
	}
	key := cache.Key(req, a.defaults)
	if cached, found := a.cache.Get(ctx, key); found {
		a.logger.Debug("cache hit", "key", key, "contentType", req.ContentType)
		return *cached, true, nil
	}

	resp, err := a.generator.ChatCompletion(ctx, ai.ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSONMode:    true,
		Messages: []ai.Message{
			{Role: "system", Content: buildSystemPrompt(req.ContentType, req.SEOEnabled)},
			{Role: "user", Content: "Content request: " + req.Prompt},
		},
	})
	if err != nil {
		a.notifyIfCritical(ctx, err)
		return domain.GenerationResult{}, false, fmt.Errorf("generate content: %w", err)
	}

	result := parseResponse(resp.Content, req.SEOEnabled)
	result.Content = SanitizeContent(result.Content)

	a.recordUsage(userID, resp)
	if err := a.cache.Put(ctx, key, req, result); err != nil {
		a.logger.Warn("cache write failed", "error", err)
	}
	return result, false, nil
}

func (a *App) recordUsage(userID string, resp ai.ChatResponse) {
	rec := domain.UsageRecord{
		UserID:     userID,
		TokensUsed: resp.Usage.TotalTokens,
		Cost:       ai.Cost(resp.Model, resp.Usage),
		Model:      resp.Model,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.usage.AppendUsage(rec); err != nil {
		a.logger.Warn("usage accounting failed", "error", err)
	}
}

func (a *App) notifyIfCritical(ctx context.Context, err error) {
	if !ai.Critical(err) {
		return
	}
	subject := "provider_error"
	if strings.Contains(err.Error(), "quota") {
		subject = "quota_exceeded"
	} else if strings.Contains(err.Error(), "api key") {
		subject = "invalid_api_key"
	}
	if alertErr := a.alerter.Notify(ctx, "provider_failure", subject, err.Error()); alertErr != nil {
		a.logger.Warn("alert delivery failed", "error", alertErr)
	}
}

// UpdateAPIKey validates a new provider key, seals it into the
// settings store and swaps it on the live client.
func (a *App) UpdateAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := a.keys.ValidateKey(ctx, key); err != nil {
		return err
	}
	sealed, err := a.box.Seal(key)
	if err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}
	if err := a.settings.PutSetting(settingAPIKey, sealed); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	a.keys.SetAPIKey(key)
	a.logger.Info("provider api key rotated")
	return nil
}

// LoadAPIKey restores the sealed key from the settings store into the
// live client. Returns ErrNotConfigured when none is stored.
func (a *App) LoadAPIKey() error {
	sealed, found, err := a.settings.GetSetting(settingAPIKey)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}
	if !found {
		return ErrNotConfigured
	}
	key, err := a.box.Open(sealed)
	if err != nil {
		return fmt.Errorf("unseal api key: %w", err)
	}
	a.keys.SetAPIKey(key)
	return nil
}

// Stats aggregates usage and cache counters for reporting.
type Stats struct {
	Usage domain.UsageStats `json:"usage"`
	Cache store.CacheStats  `json:"cache"`
}

// Stats reports usage since the given time plus cache counters. An
// empty userID aggregates across all users.
func (a *App) Stats(since time.Time, userID string) (Stats, error) {
	usage, err := a.usage.UsageStats(since, userID)
	if err != nil {
		return Stats{}, err
	}
	cacheStats, err := a.cache.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Usage: usage, Cache: cacheStats}, nil
}

// AvailableModels lists models for client UIs. When the provider
// catalog is unreachable the priced models serve as the fallback so
// the selector never comes back empty.
func (a *App) AvailableModels(ctx context.Context) ([]string, error) {
	if a.models != nil {
		models, err := a.models.Models(ctx)
		if err == nil && len(models) > 0 {
			return models, nil
		}
		if err != nil {
			a.logger.Warn("provider model listing failed", "error", err)
		}
	}
	return ai.KnownModels(), nil
}

// HasAPIKey reports whether a sealed provider key is stored.
func (a *App) HasAPIKey() (bool, error) {
	_, found, err := a.settings.GetSetting(settingAPIKey)
	return found, err
}
