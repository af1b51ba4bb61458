package extract

import "strings"

// Phones canonicalises free-text digit sequences into +1 numbers.
//
// This is a strict validator, not a best-effort one: exactly 10 digits
// are assumed domestic and prefixed with country code 1; 11 digits are
// accepted only when they already start with 1. Ambiguous counts (9,
// 12, ...) are rejected rather than guessed.
type Phones struct{}

// NewPhones returns the digit-stripping phone extractor.
func NewPhones() *Phones {
	return &Phones{}
}

// ExtractPhone strips all non-digit characters and canonicalises the
// remainder, e.g. "(555) 123-4567" -> "+15551234567".
func (*Phones) ExtractPhone(text string) (string, bool) {
	d := digits(text)
	switch {
	case len(d) == 10:
		return "+1" + d, true
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d, true
	default:
		return "", false
	}
}
