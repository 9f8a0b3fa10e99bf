package engine

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/net/html"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "GoGap/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanHTML strips HTML tags, decodes entities and collapses whitespace.
// Caption XML is often double-escaped (&amp;#39;), so entities are decoded twice.
func CleanHTML(s string) string {
	s = html.UnescapeString(html.UnescapeString(s))
	s = htmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// NormalizeTopic returns the comparison key for a topic keyword: lowercased,
// punctuation collapsed to single spaces.
func NormalizeTopic(topic string) string {
	var b strings.Builder
	prevSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			b.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// NormalizeSpace lowercases s and collapses whitespace, for substring checks
// that must ignore case and line breaks.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}
