package app

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\[([A-Z0-9_]+)\]`)

// ExtractPlaceholders lists the distinct [PLACEHOLDER] tokens in a
// template prompt, sorted for stable output.
func ExtractPlaceholders(prompt string) []string {
	matches := placeholderRe.FindAllStringSubmatch(prompt, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

// RenderTemplate substitutes variables into [PLACEHOLDER] tokens and
// reports any placeholders left unresolved.
func RenderTemplate(prompt string, vars map[string]string) (string, []string) {
	rendered := placeholderRe.ReplaceAllStringFunc(prompt, func(token string) string {
		name := token[1 : len(token)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
	return rendered, ExtractPlaceholders(rendered)
}

// TemplateIssues validates a template prompt, returning human-readable
// problems. An empty slice means the template is usable.
func TemplateIssues(prompt string) []string {
	var issues []string
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		issues = append(issues, "prompt is empty")
		return issues
	}
	if len(trimmed) < 10 {
		issues = append(issues, "prompt is too short to produce meaningful content")
	}
	if strings.Contains(prompt, "[]") {
		issues = append(issues, "empty placeholder brackets found")
	}
	if opens, closes := strings.Count(prompt, "["), strings.Count(prompt, "]"); opens != closes {
		issues = append(issues, "unbalanced placeholder brackets")
	}
	return issues
}
