// Package sanitize provides text sanitization for untrusted inbound content.
package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a user-provided string for storage.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// HTMLToText extracts readable text from an HTML document such as an email body.
// Script and style content is dropped and block elements become line breaks.
func HTMLToText(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return normalizeWhitespace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4":
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "tr":
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRegex.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRegex.ReplaceAllString(joined, "\n\n"))
}
