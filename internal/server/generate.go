package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contentforge/internal/app"
	"contentforge/internal/usertoken"
	"contentforge/pkg/ai"
	"contentforge/pkg/domain"
)

// generateResponse is the envelope for interactive generation.
type generateResponse struct {
	Success bool                    `json:"success"`
	Data    domain.GenerationResult `json:"data"`
	Cached  bool                    `json:"cached"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, cached, err := s.app.GenerateContent(r.Context(), claims.UserID, req)
	if err != nil {
		writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, Data: result, Cached: cached})
}

// writeGenerateError maps pipeline failures to HTTP statuses. Caller
// mistakes are 400s, provider trouble surfaces as upstream errors.
func writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyPrompt),
		errors.Is(err, app.ErrPromptTooLong),
		errors.Is(err, app.ErrInvalidContentType),
		errors.Is(err, app.ErrInvalidTemperature),
		errors.Is(err, app.ErrInvalidMaxTokens):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotConfigured), errors.Is(err, ai.ErrInvalidAPIKey):
		writeError(w, http.StatusBadGateway, "provider not configured or key rejected")
	case errors.Is(err, ai.ErrQuotaExceeded):
		writeError(w, http.StatusBadGateway, "provider quota exceeded")
	case ai.Retryable(err):
		writeError(w, http.StatusServiceUnavailable, "provider temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "generation failed")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 3650 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		since = time.Now().UTC().AddDate(0, 0, -days)
	}
	stats, err := s.app.Stats(since, r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	queueStats, err := s.queue.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"usage": stats.Usage,
		"cache": stats.Cache,
		"queue": queueStats,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	models, err := s.app.AvailableModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "model listing unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request, _ usertoken.Claims) {
	stats, err := s.cache.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	contentType := domain.ContentType(strings.TrimSpace(r.URL.Query().Get("type")))
	if contentType != "" && !domain.ValidContentType(contentType) {
		writeError(w, http.StatusBadRequest, "unknown content type")
		return
	}
	n, err := s.cache.Clear(r.Context(), contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

func (s *Server) handleAPIKeyUpdate(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.app.UpdateAPIKey(r.Context(), body.APIKey); err != nil {
		if errors.Is(err, ai.ErrInvalidAPIKey) {
			writeError(w, http.StatusBadRequest, "api key rejected by provider")
			return
		}
		writeError(w, http.StatusInternalServerError, "api key update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
