package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TruncationMarker is appended to any text cut by Truncate.
const TruncationMarker = "\n...[truncated]"

// Truncate keeps the first limit runes of s and appends TruncationMarker when
// anything was cut. The result depends only on its inputs.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + TruncationMarker
}

// TruncateTitle shortens a conversation title to limit runes plus "...".
func TruncateTitle(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// LooksLikeHTML reports whether s appears to carry markup from the filing
// ingestion step.
func LooksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, tag := range []string{"<p", "<div", "<table", "<span", "<br", "<td", "<font"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// PlainText converts an HTML fragment into whitespace-normalized text.
// Non-HTML input is only whitespace-normalized.
func PlainText(s string) string {
	if !LooksLikeHTML(s) {
		return normalizeSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	doc.Find("p, div, tr, li, br, h1, h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	b.WriteString(doc.Text())
	return normalizeSpace(b.String())
}

// normalizeSpace collapses runs of spaces inside lines and drops blank lines.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
