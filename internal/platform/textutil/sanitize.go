package textutil

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicyOnce sync.Once
	plainPolicy     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	plainPolicyOnce.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()
	})
	return plainPolicy
}

// PlainText strips markup from user supplied free text such as order notes and rating comments,
// collapses surrounding whitespace and truncates the result to maxRunes (when positive).
func PlainText(input string, maxRunes int) string {
	cleaned := strings.TrimSpace(strictPolicy().Sanitize(input))
	// StrictPolicy escapes entities; notes are stored as text, not HTML.
	cleaned = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`, "&lt;", "<", "&gt;", ">").Replace(cleaned)
	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return cleaned
}
