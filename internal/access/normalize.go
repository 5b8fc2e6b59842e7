package access

import (
	"strings"
	"unicode"
)

// Normalize canonicalises a card UID: all whitespace removed, upper case.
// It is idempotent.
func Normalize(uid string) string {
	var b strings.Builder
	b.Grow(len(uid))
	for _, r := range uid {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
