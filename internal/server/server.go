// Package server exposes the aicg/v1 REST API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"contentforge/internal/app"
	"contentforge/internal/cache"
	"contentforge/internal/queue"
	"contentforge/internal/store"
	"contentforge/internal/usertoken"
	"contentforge/internal/util"
	"contentforge/pkg/domain"
)

// Limiter is the rate-limit surface the server depends on.
// *ratelimit.SlidingWindowLimiter implements it.
type Limiter interface {
	Allow(key string) bool
}

// Limits groups the per-endpoint-family limiters.
type Limits struct {
	Generate  Limiter
	Bulk      Limiter
	Templates Limiter
	Default   Limiter
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Queue          *queue.Service
	Cache          *cache.Cache
	Templates      store.TemplateRepository
	TokenVerifier  *usertoken.Verifier
	Limits         Limits
	TrustedProxies *util.TrustedProxies
	// Redis powers the health check's fast-tier probe. Optional.
	Redis *goredis.Client
}

// Server exposes HTTP endpoints for content generation.
type Server struct {
	app           *app.App
	queue         *queue.Service
	cache         *cache.Cache
	templates     store.TemplateRepository
	tokenVerifier *usertoken.Verifier
	limits        Limits
	trusted       *util.TrustedProxies
	redisClient   *goredis.Client
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:           cfg.App,
		queue:         cfg.Queue,
		cache:         cfg.Cache,
		templates:     cfg.Templates,
		tokenVerifier: cfg.TokenVerifier,
		limits:        cfg.Limits,
		trusted:       cfg.TrustedProxies,
		redisClient:   cfg.Redis,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("contentforge",
			util.WithSecurityHeaders(
				util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.Handle("POST /aicg/v1/generate", s.secured(domain.RoleEditor, s.limits.Generate, s.handleGenerate))
	s.mux.Handle("GET /aicg/v1/models", s.secured(domain.RoleEditor, s.limits.Default, s.handleModels))

	s.mux.Handle("GET /aicg/v1/templates", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateList))
	s.mux.Handle("POST /aicg/v1/templates", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateCreate))
	s.mux.Handle("POST /aicg/v1/templates/validate", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateValidate))
	s.mux.Handle("GET /aicg/v1/templates/{id}", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateGet))
	s.mux.Handle("PUT /aicg/v1/templates/{id}", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateUpdate))
	s.mux.Handle("DELETE /aicg/v1/templates/{id}", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateDelete))
	s.mux.Handle("POST /aicg/v1/templates/{id}/duplicate", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateDuplicate))
	s.mux.Handle("POST /aicg/v1/templates/{id}/preview", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplatePreview))
	s.mux.Handle("GET /aicg/v1/templates/{id}/history", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateHistory))
	s.mux.Handle("POST /aicg/v1/templates/{id}/restore", s.secured(domain.RoleEditor, s.limits.Templates, s.handleTemplateRestore))

	s.mux.Handle("POST /aicg/v1/bulk", s.secured(domain.RoleEditor, s.limits.Bulk, s.handleBulkSubmit))
	s.mux.Handle("GET /aicg/v1/bulk/{batch}", s.secured(domain.RoleEditor, s.limits.Default, s.handleBulkStatus))
	s.mux.Handle("GET /aicg/v1/bulk/{batch}/items", s.secured(domain.RoleEditor, s.limits.Default, s.handleBulkItems))
	s.mux.Handle("DELETE /aicg/v1/bulk/{batch}", s.secured(domain.RoleEditor, s.limits.Default, s.handleBulkCancel))
	s.mux.Handle("POST /aicg/v1/bulk/{batch}/retry", s.secured(domain.RoleEditor, s.limits.Default, s.handleBulkRetry))

	s.mux.Handle("GET /aicg/v1/stats", s.secured(domain.RoleAdmin, s.limits.Default, s.handleStats))
	s.mux.Handle("GET /aicg/v1/cache", s.secured(domain.RoleAdmin, s.limits.Default, s.handleCacheStats))
	s.mux.Handle("DELETE /aicg/v1/cache", s.secured(domain.RoleAdmin, s.limits.Default, s.handleCacheClear))
	s.mux.Handle("PUT /aicg/v1/settings/api-key", s.secured(domain.RoleAdmin, s.limits.Default, s.handleAPIKeyUpdate))
}

type authedHandler func(http.ResponseWriter, *http.Request, usertoken.Claims)

// secured authenticates the bearer token, enforces the minimum role,
// and applies the endpoint family's rate limit keyed by user.
func (s *Server) secured(minRole domain.UserRole, limiter Limiter, next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "token verifier not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.tokenVerifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if minRole == domain.RoleAdmin && claims.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if limiter != nil {
			key := claims.UserID
			if key == "" {
				key = util.ClientIP(r, s.trusted)
			}
			if !limiter.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r, claims)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	// Both the database and cache checks ride on the durable cache
	// tier; a stats query proves the database answers.
	if _, err := s.cache.Stats(); err != nil {
		checks["database"] = "unavailable"
		checks["cache"] = "unavailable"
		status = "degraded"
	} else {
		checks["database"] = "ok"
		checks["cache"] = "ok"
	}

	if s.redisClient == nil {
		checks["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = "degraded"
		} else {
			checks["redis"] = "ok"
		}
		cancel()
	}

	// A missing key is a configuration state, not an outage.
	if configured, err := s.app.HasAPIKey(); err != nil {
		checks["api_key"] = "unknown"
	} else if configured {
		checks["api_key"] = "configured"
	} else {
		checks["api_key"] = "missing"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
