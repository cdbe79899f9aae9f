package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail canonicalizes an email address for use as a storage
// key: NFKD normalization, surrounding whitespace stripped, lower-cased.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKD.String(s)))
}
