package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"contentforge/pkg/domain"
)

// Key derives the deterministic cache key for a request. Requests that
// differ only in unset optional fields hash identically because
// defaults are applied before fingerprinting.
func Key(req domain.GenerationRequest, defaults domain.GenerationRequest) string {
	norm := Normalize(req, defaults)
	fingerprint := strings.Join([]string{
		norm.Prompt,
		string(norm.ContentType),
		fmt.Sprintf("%t", norm.SEOEnabled),
		norm.Model,
		fmt.Sprintf("%.4f", norm.Temperature),
		fmt.Sprintf("%d", norm.MaxTokens),
	}, "|")
	sum := md5.Sum([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}

// Normalize fills unset optional fields from defaults. Priority is
// excluded: it affects queue ordering, not output.
func Normalize(req, defaults domain.GenerationRequest) domain.GenerationRequest {
	if req.ContentType == "" {
		req.ContentType = defaults.ContentType
	}
	if strings.TrimSpace(req.Model) == "" {
		req.Model = defaults.Model
	}
	if req.Temperature == 0 {
		req.Temperature = defaults.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaults.MaxTokens
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Priority = 0
	return req
}
