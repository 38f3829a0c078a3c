package app

import (
	"encoding/json"
	"regexp"
	"strings"

	"contentforge/pkg/domain"
)

var (
	codeFenceRe = regexp.MustCompile("(?m)^```json\\s*|\\s*```$")
	h1Re        = regexp.MustCompile(`(?i)<h1[^>]*>(.*?)</h1>`)
	metaDescRe  = regexp.MustCompile(`(?i)meta.?description[:\s]+([^\n]{20,160})`)
	keywordsRe  = regexp.MustCompile(`(?i)keywords?[:\s]+([^\n]+)`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// parseResponse extracts a structured result from the model output.
// Well-behaved models return the requested JSON object; anything else
// goes through the regex fallback so a malformed reply still yields
// usable content instead of an error.
func parseResponse(raw string, seoEnabled bool) domain.GenerationResult {
	var result domain.GenerationResult
	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(raw, ""))
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil &&
		result.Title != "" && result.Content != "" {
		return result
	}
	return fallbackParse(raw, seoEnabled)
}

func fallbackParse(raw string, seoEnabled bool) domain.GenerationResult {
	content := strings.TrimSpace(codeFenceRe.ReplaceAllString(raw, ""))
	result := domain.GenerationResult{
		Title:   extractTitle(content),
		Content: content,
	}
	if seoEnabled {
		result.MetaDescription = extractMetaDescription(content)
		result.Keywords = extractKeywords(content)
		result.Excerpt = trimWords(stripTags(content), 55)
	}
	return result
}

func extractTitle(content string) string {
	if m := h1Re.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(stripTags(m[1]))
	}
	return "Untitled"
}

func extractMetaDescription(content string) string {
	if m := metaDescRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimWords(stripTags(content), 20)
}

func extractKeywords(content string) []string {
	m := keywordsRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keywords = append(keywords, part)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

func collapseSpaces(s string) string {
	return spaceRe.ReplaceAllString(s, " ")
}

// trimWords returns the first n whitespace-separated words, appending
// an ellipsis when the text was longer.
func trimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "…"
}
