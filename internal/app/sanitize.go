package app

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	jsProtoRe = regexp.MustCompile(`(?i)javascript:`)
	onAttrRe  = regexp.MustCompile(`(?i)on\w+\s*=`)

	promptDenyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(eval|exec|system|shell_exec|passthru|file_get_contents|curl|wget)\b`),
		regexp.MustCompile(`(?i)\b(script|javascript|vbscript|onload|onerror|onclick)\b`),
		regexp.MustCompile(`[<>]`),
		regexp.MustCompile(`\{\{.*?\}\}`),
		regexp.MustCompile(`\$\{.*?\}`),
	}
)

// Domains whose links survive sanitization. Anything else is
// neutralized but preserved in a data attribute for review.
var safeDomains = []string{
	"wordpress.org",
	"wikipedia.org",
	"github.com",
	"stackoverflow.com",
	"google.com",
	"youtube.com",
	"vimeo.com",
	"twitter.com",
	"facebook.com",
	"linkedin.com",
	"instagram.com",
	"pinterest.com",
	"amazon.com",
	"apple.com",
	"microsoft.com",
}

// SanitizeContent removes script tags, inline handlers and
// javascript: URIs from generated HTML, and neutralizes links to
// unvetted domains.
func SanitizeContent(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	content = jsProtoRe.ReplaceAllString(content, "")
	content = onAttrRe.ReplaceAllString(content, "")

	bodyCtx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), bodyCtx)
	if err != nil {
		return content
	}
	var buf bytes.Buffer
	for _, node := range nodes {
		rewriteLinks(node)
		if err := html.Render(&buf, node); err != nil {
			return content
		}
	}
	return buf.String()
}

func rewriteLinks(node *html.Node) {
	if node.Type == html.ElementNode && node.DataAtom == atom.A {
		for i, attr := range node.Attr {
			if attr.Key != "href" || safeURL(attr.Val) {
				continue
			}
			node.Attr[i].Val = "#"
			node.Attr = append(node.Attr, html.Attribute{Key: "data-blocked-url", Val: attr.Val})
			break
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		rewriteLinks(child)
	}
}

// safeURL accepts relative links and http(s) links to allowlisted
// domains or their subdomains.
func safeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		// Relative link within the site.
		return true
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range safeDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
