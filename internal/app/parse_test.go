package app

import (
	"strings"
	"testing"
)

func TestParseResponseStrictJSON(t *testing.T) {
	raw := `{"title":"Go Rocks","content":"<p>body</p>","meta_description":"desc","keywords":["go","web"],"excerpt":"short"}`
	result := parseResponse(raw, true)
	if result.Title != "Go Rocks" || result.Content != "<p>body</p>" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Keywords) != 2 || result.Keywords[0] != "go" {
		t.Fatalf("keywords = %v", result.Keywords)
	}
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"title\":\"Fenced\",\"content\":\"<p>x</p>\"}\n```"
	result := parseResponse(raw, false)
	if result.Title != "Fenced" {
		t.Fatalf("result = %+v", result)
	}
}

func TestParseResponseFallbackH1Title(t *testing.T) {
	raw := "<h1>My <em>Great</em> Post</h1><p>First paragraph here.</p>"
	result := parseResponse(raw, false)
	if result.Title != "My Great Post" {
		t.Fatalf("title = %q", result.Title)
	}
	if !strings.Contains(result.Content, "First paragraph") {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestParseResponseFallbackUntitled(t *testing.T) {
	result := parseResponse("just some plain text with no heading", false)
	if result.Title != "Untitled" {
		t.Fatalf("title = %q", result.Title)
	}
}

func TestParseResponseFallbackSEOFields(t *testing.T) {
	raw := "<h1>Post</h1>\nMeta description: A concise summary of the article for engines.\nKeywords: go, web, http, json, cache, extra\n<p>Body text.</p>"
	result := parseResponse(raw, true)
	if !strings.Contains(result.MetaDescription, "concise summary") {
		t.Fatalf("meta = %q", result.MetaDescription)
	}
	if len(result.Keywords) != 5 {
		t.Fatalf("keywords capped at 5, got %v", result.Keywords)
	}
	if result.Excerpt == "" {
		t.Fatalf("expected excerpt")
	}
}

func TestParseResponseFallbackMetaFromFirstWords(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = "word"
	}
	raw := "<h1>T</h1><p>" + strings.Join(words, " ") + "</p>"
	result := parseResponse(raw, true)
	got := strings.Fields(strings.TrimSuffix(result.MetaDescription, "…"))
	if len(got) > 21 {
		t.Fatalf("meta description too long: %d words", len(got))
	}
}

func TestTrimWords(t *testing.T) {
	if got := trimWords("one two three", 5); got != "one two three" {
		t.Fatalf("short text = %q", got)
	}
	if got := trimWords("one two three four", 2); got != "one two…" {
		t.Fatalf("trimmed = %q", got)
	}
}
