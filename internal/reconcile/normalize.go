package reconcile

import (
	"regexp"
	"strings"
)

var (
	addressPunctRe  = regexp.MustCompile(`[.,#\-]`)
	addressSuffixRe = regexp.MustCompile(`\b(street|st|road|rd|avenue|ave|boulevard|blvd|drive|dr|lane|ln|court|ct|circle|cir|way|place|pl)\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// NormalizeAddress reduces a street address to a comparison key: lowercase,
// punctuation stripped, street-type words dropped, whitespace collapsed.
// "123 Main Street" and "123 Main St." both become "123 main".
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)
	s = addressPunctRe.ReplaceAllString(s, " ")
	s = addressSuffixRe.ReplaceAllString(s, " ")
	return collapse(s)
}

// NormalizeCity lowercases, trims, and collapses internal whitespace.
func NormalizeCity(s string) string {
	return collapse(strings.ToLower(s))
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
