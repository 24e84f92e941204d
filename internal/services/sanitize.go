package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// richPolicy keeps the formatting a rich-text editor produces and drops
// scripts, handlers, and unsafe URLs.
var richPolicy = bluemonday.UGCPolicy()

// plainPolicy strips every tag.
var plainPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// sanitizeRich cleans user supplied HTML for introductions, bodies, and
// comments.
func sanitizeRich(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// plainText strips markup and normalizes whitespace. Entities are decoded so
// the stored value is the text a reader sees.
func plainText(s string) string {
	s = html.UnescapeString(plainPolicy.Sanitize(s))
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// isBlankHTML reports whether s renders as nothing.
func isBlankHTML(s string) bool { return plainText(s) == "" }

// tooLong reports whether s has more than max runes.
func tooLong(s string, max int) bool { return utf8.RuneCountInString(s) > max }
