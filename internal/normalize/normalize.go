// SPDX-License-Identifier: MIT

// Package normalize reduces feed titles to a canonical comparable form and
// derives stable dedup identifiers from them.
package normalize

import (
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// articles stripped once from the front of a title, longest match first.
var articles = []string{"the ", "an ", "a "}

// Title normalizes a display title for fuzzy comparability:
// lowercase, trim, strip a single leading article, replace everything
// outside [a-z0-9] with a space, collapse whitespace runs, trim again.
// Total: garbage input yields the empty string, never an error.
func Title(s string) string {
	// NFC first so decomposed accents compare equal before being stripped.
	s = unorm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))

	for _, art := range articles {
		if strings.HasPrefix(s, art) {
			s = s[len(art):]
			break
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true // leading spaces collapse away
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
