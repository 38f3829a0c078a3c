package app

import (
	"fmt"
	"strings"

	"contentforge/pkg/domain"
)

var contentTypeLabels = map[domain.ContentType]string{
	domain.ContentPost:    "blog post",
	domain.ContentPage:    "static page",
	domain.ContentProduct: "product description",
	domain.ContentEmail:   "email newsletter",
	domain.ContentSocial:  "social media post",
}

// buildSystemPrompt describes the writer persona and the JSON shape
// the model must produce.
func buildSystemPrompt(contentType domain.ContentType, seoEnabled bool) string {
	label, ok := contentTypeLabels[contentType]
	if !ok {
		label = string(contentType)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional content writer creating %s content.\n\n", label)
	b.WriteString("Instructions:\n")
	b.WriteString("- Write engaging, well-structured content\n")
	b.WriteString("- Use proper HTML formatting (headings, paragraphs, lists)\n")
	b.WriteString("- Make content scannable and easy to read\n")
	if seoEnabled {
		b.WriteString("- Optimize for SEO with relevant keywords\n")
		b.WriteString("- Include a meta description (max 160 characters)\n")
		b.WriteString("- Suggest 3-5 focus keywords\n")
		b.WriteString("- Create an SEO-friendly title\n")
	}
	b.WriteString("\nFormat your response as JSON with the following structure:\n{\n")
	b.WriteString(`  "title": "Article title",` + "\n")
	b.WriteString(`  "content": "Full HTML content"`)
	if seoEnabled {
		b.WriteString(",\n")
		b.WriteString(`  "meta_description": "SEO meta description",` + "\n")
		b.WriteString(`  "keywords": ["keyword1", "keyword2", "keyword3"],` + "\n")
		b.WriteString(`  "excerpt": "Brief excerpt for listings"` + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

// SanitizePrompt strips markup, injection-prone tokens and template
// syntax from user input before it reaches the model.
func SanitizePrompt(prompt string) string {
	prompt = stripTags(prompt)
	for _, re := range promptDenyPatterns {
		prompt = re.ReplaceAllString(prompt, "")
	}
	return strings.TrimSpace(collapseSpaces(prompt))
}
