package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"contentforge/internal/alert"
	"contentforge/internal/app"
	"contentforge/internal/cache"
	"contentforge/internal/config"
	"contentforge/internal/queue"
	"contentforge/internal/ratelimit"
	"contentforge/internal/schedule"
	"contentforge/internal/secure"
	"contentforge/internal/server"
	"contentforge/internal/store"
	"contentforge/internal/usertoken"
	"contentforge/internal/util"
	"contentforge/pkg/ai"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	repo, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to open database", "err", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		util.Fatal("failed to reach redis", "err", err, "addr", cfg.RedisAddr)
	}
	cancel()

	box, err := secure.LoadOrCreateKey(cfg.SecretKeyPath)
	if err != nil {
		util.Fatal("failed to load secret key", "err", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		util.Fatal("failed to parse trusted proxies", "err", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{Secret: cfg.AuthJWTSecret})
	if err != nil {
		util.Fatal("failed to init token verifier", "err", err)
	}

	provider := ai.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.DefaultModel)
	alerter := alert.New(redisClient, "contentforge:alerts", cfg.AlertWebhookURL, logger)
	contentCache := cache.New(redisClient, repo, "contentforge:cache", logger)

	appCore := app.New(app.Options{
		Generator: provider,
		Keys:      provider,
		Models:    provider,
		Cache:     contentCache,
		Usage:     repo,
		Settings:  repo,
		Box:       box,
		Alerter:   alerter,
		Defaults:  cfg.Defaults(),
		MaxPrompt: cfg.MaxPromptChars,
		Logger:    logger,
	})
	bootstrapAPIKey(appCore, cfg.ProviderAPIKey, logger)

	sched := schedule.NewTimerScheduler()
	defer sched.Stop()
	queueSvc := queue.New(repo, appCore, sched, alerter, queue.Config{
		BatchSize:          cfg.QueueBatchSize,
		MaxAttempts:        cfg.QueueMaxAttempts,
		Reschedule:         time.Duration(cfg.QueueRescheduleSeconds) * time.Second,
		MaxBatchOperations: cfg.MaxBatchOperations,
		RetentionDays:      cfg.QueueRetentionDays,
	}, logger)
	queueSvc.Start()
	defer queueSvc.Stop()

	httpServer := server.New(server.Config{
		App:            appCore,
		Queue:          queueSvc,
		Cache:          contentCache,
		Templates:      repo,
		TokenVerifier:  tokenVerifier,
		Limits:         buildLimits(redisClient, cfg),
		TrustedProxies: trusted,
		Redis:          redisClient,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		runMaintenance(groupCtx, contentCache, queueSvc, repo, cfg, logger)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

// bootstrapAPIKey prefers the sealed key in the settings store. The
// env-provided key is persisted on first boot so later restarts no
// longer need the env var.
func bootstrapAPIKey(appCore *app.App, envKey string, logger *slog.Logger) {
	err := appCore.LoadAPIKey()
	if err == nil {
		return
	}
	if !errors.Is(err, app.ErrNotConfigured) {
		util.Fatal("failed to load provider api key", "err", err)
	}
	if envKey == "" {
		logger.Warn("no provider api key configured, generation disabled until one is set")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := appCore.UpdateAPIKey(ctx, envKey); err != nil {
		logger.Warn("failed to persist bootstrap api key, continuing with env key", "err", err)
	}
}

func buildLimits(redisClient *goredis.Client, cfg config.FileConfig) server.Limits {
	mustLimiter := func(name string, limit int) server.Limiter {
		l, err := ratelimit.NewSlidingWindowLimiter(redisClient, "contentforge:ratelimit:"+name, limit, time.Hour)
		if err != nil {
			util.Fatal("failed to build rate limiter", "name", name, "err", err)
		}
		return l
	}
	return server.Limits{
		Generate:  mustLimiter("generate", cfg.GenerateRateLimitPerHour),
		Bulk:      mustLimiter("bulk", cfg.BulkRateLimitPerHour),
		Templates: mustLimiter("templates", cfg.TemplatesRateLimitPerHour),
		Default:   mustLimiter("default", cfg.DefaultRateLimitPerHour),
	}
}

// runMaintenance sweeps expired cache entries and prunes old queue
// items and usage records on a fixed interval until ctx is done.
func runMaintenance(ctx context.Context, contentCache *cache.Cache, queueSvc *queue.Service, repo *store.GormStore, cfg config.FileConfig, logger *slog.Logger) {
	interval := time.Duration(cfg.CacheCleanupIntervalMins) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := contentCache.Sweep(); err != nil {
			logger.Warn("cache sweep failed", "err", err)
		} else if n > 0 {
			logger.Info("cache sweep", "removed", n)
		}
		if n, err := queueSvc.CleanupOld(); err != nil {
			logger.Warn("queue cleanup failed", "err", err)
		} else if n > 0 {
			logger.Info("queue cleanup", "removed", n)
		}
		usageCutoff := time.Now().UTC().AddDate(0, 0, -cfg.UsageRetentionDays)
		if n, err := repo.PurgeUsage(usageCutoff); err != nil {
			logger.Warn("usage purge failed", "err", err)
		} else if n > 0 {
			logger.Info("usage purge", "removed", n)
		}
	}
}
