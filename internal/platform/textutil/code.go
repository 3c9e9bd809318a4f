package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var upper = cases.Upper(language.Und)

// CanonicalCode folds full-width characters, drops inner whitespace and upper-cases a
// customer typed code such as a coupon code, so "ｓａｖｅ 10" and "SAVE10" compare equal.
func CanonicalCode(raw string) string {
	folded := width.Fold.String(strings.TrimSpace(raw))
	folded = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
	return upper.String(folded)
}
