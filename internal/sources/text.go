package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockTag = regexp.MustCompile(`(?i)<(/?)(p|div|br|li|td|tr|h[1-6])(\s[^>]*)?/?>`)

// HTMLToText strips markup from feed content and collapses whitespace.
// Plain text passes through unchanged apart from whitespace.
func HTMLToText(s string) string {
	if !strings.Contains(s, "<") {
		return normalizeText(s)
	}

	spaced := blockTag.ReplaceAllStringFunc(s, func(tag string) string { return " " + tag + " " })
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return normalizeText(s)
	}
	doc.Find("script, style, noscript, iframe").Remove()
	return normalizeText(doc.Text())
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
