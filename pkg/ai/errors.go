package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Provider failure classes. Callers branch on these to decide between
// retrying, alerting, and surfacing the error.
var (
	ErrInvalidAPIKey       = errors.New("invalid api key")
	ErrRateLimited         = errors.New("provider rate limited")
	ErrQuotaExceeded       = errors.New("provider quota exceeded")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrEmptyResponse       = errors.New("empty response from provider")
)

// Retryable reports whether the failure is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrEmptyResponse)
}

// Critical reports whether the failure needs operator attention.
func Critical(err error) bool {
	return errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, ErrQuotaExceeded)
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func apiError(resp *http.Response) error {
	var body oaiErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	detail := strings.TrimSpace(body.Error.Message)
	if detail == "" {
		detail = resp.Status
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		if body.Error.Type == "insufficient_quota" || body.Error.Code == "insufficient_quota" ||
			strings.Contains(strings.ToLower(detail), "quota") {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, detail)
		}
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, detail)
	default:
		return fmt.Errorf("provider api error: %s", detail)
	}
}
