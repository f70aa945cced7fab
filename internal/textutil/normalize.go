package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// MatchKey folds case and removes every whitespace rune, so "Store  Manager " and
// "storemanager" compare equal. Used for exact designation and store-name matching.
func MatchKey(s string) string {
	folded := cases.Fold().String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// Clean trims s and collapses inner whitespace runs to one space. Stored names
// keep their case.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
