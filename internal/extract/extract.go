// Package extract pulls structured values out of free-form chat text.
//
// Two extractors live here: a name extractor that recognises order-
// lookup phrasings ("show John Smith's orders"), and a phone extractor
// that canonicalises digit sequences into +1 numbers. Both are
// best-effort pattern matchers behind small strategy interfaces so a
// stricter parser (e.g. NLP entity extraction) can be substituted
// without touching the router.
package extract

import (
	"strings"
	"unicode"
)

// NameExtractor resolves a first/last name pair from an utterance.
// ok is false when no pattern matches; that is a normal "no intent"
// outcome, not an error.
type NameExtractor interface {
	ExtractName(text string) (first, last string, ok bool)
}

// PhoneExtractor resolves a canonical phone number from an utterance.
// ok is false when the digit count is not a valid domestic number.
type PhoneExtractor interface {
	ExtractPhone(text string) (phone string, ok bool)
}

// titleCase uppercases the first rune and lowercases the rest, matching
// how customer records are stored.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// digits returns only the digit characters of s.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitCount reports how many digit characters appear in s. The router
// uses this to detect digit-dominant utterances (a pasted phone number).
func DigitCount(s string) int {
	return len(digits(s))
}
