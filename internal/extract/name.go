package extract

import (
	"regexp"
	"strings"
)

// namePatterns is the ordered rule list for order-lookup phrasings.
// Each pattern captures exactly two groups: first name, last name.
// Rules are tried top to bottom against the lowercased input and the
// first match wins; multiple candidate names in one utterance are not
// disambiguated.
var namePatterns = []*regexp.Regexp{
	// "show John Smith's orders", "get me john smith order"
	regexp.MustCompile(`(?:show|get|find|display)\s+(?:me\s+)?([a-z]+)\s+([a-z]+)(?:'s)?\s+orders?`),
	// "John Smith's orders"
	regexp.MustCompile(`([a-z]+)\s+([a-z]+)'s\s+orders?`),
	// "orders for John Smith", "find the orders of john smith"
	regexp.MustCompile(`orders?\s+(?:for|of)\s+([a-z]+)\s+([a-z]+)`),
}

// orderIntent matches utterances that talk about orders at all; the
// router requires this before treating a name match as an order lookup.
var orderIntent = regexp.MustCompile(`orders?\b`)

// Names extracts first/last name pairs from order-lookup phrasings
// using the ordered regex rules above.
type Names struct{}

// NewNames returns the regex-based name extractor.
func NewNames() *Names {
	return &Names{}
}

// ExtractName applies each pattern in order against the lowercased
// input and returns the first match's captured groups, title-cased.
func (*Names) ExtractName(text string) (first, last string, ok bool) {
	lowered := strings.ToLower(text)
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(lowered); m != nil {
			return titleCase(m[1]), titleCase(m[2]), true
		}
	}
	return "", "", false
}

// HasOrderIntent reports whether the utterance mentions orders.
func HasOrderIntent(text string) bool {
	return orderIntent.MatchString(strings.ToLower(text))
}
