// internal/reservation/slug.go
//
// Slug format helpers.
//
// • Normalize(text) ─ converts arbitrary text into a URL-safe slug restricted
//   to ASCII a-z, 0-9 and “-”.
// • Valid(slug)     ─ reports whether a caller-supplied slug already obeys
//   the format, without rewriting it.
//
// Rules (Normalize)
// -----------------
// 1. Lower-case everything.
// 2. Convert any run of non-[a-z0-9] characters to one “-”.  That strips
//    spaces, punctuation, emoji, and non-ASCII.
// 3. Collapse consecutive “-” to a single “-”.
// 4. Trim leading / trailing “-”.
// 5. If the result is empty, return "site".
//
// Notes
// -----
// • No Unicode transliteration; slugs are English-only for now.
// • Slugs are max 100 bytes; callers may truncate earlier if they prefer.

package reservation

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Valid reports whether slug contains only lowercase letters, digits, and
// hyphens.  Empty slugs are invalid.
func Valid(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Normalize converts text → lower-kebab ASCII.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastWasDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			// any non-ASCII or punctuation becomes a single dash
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "site"
	}
	if len(slug) > 100 {
		slug = slug[:100]
		// trim trailing dash if the cut landed on one
		slug = strings.TrimRightFunc(slug, func(r rune) bool { return r == '-' })
	}
	return slug
}
