package search

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

var strictPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// PlainText reduces rich text to its visible words: markup is dropped,
// entities are decoded, and whitespace runs collapse to a single space.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the Unicode case-folded form of s used for matching. It folds
// more than strings.ToLower, e.g. "Straße" and "STRASSE" compare equal.
func Fold(s string) string {
	return cases.Fold().String(s)
}
