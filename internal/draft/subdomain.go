// internal/draft/subdomain.go
//
// Subdomain candidate helpers.
//
// • MakeSubdomain(brief) ─ picks the preferred subdomain verbatim when
//   present (NormalizeBrief has already checked it), otherwise slugs the
//   business name.
// • Slug(text) ─ converts arbitrary text into a hostname label restricted
//   to ASCII a-z, 0-9 and “-”.
// • ValidLabel(s) ─ checks the hostname-label rules.
// • Disambiguate(base, n) ─ builds the n-th retry candidate after a
//   DuplicateSubdomain.
//
// Rules (Slug)
// ------------
// 1. Lower-case everything.
// 2. Convert any run of non-[a-z0-9] characters to one “-”.  That strips
//    spaces, apostrophes, emoji, and non-ASCII.
// 3. Trim leading / trailing “-”.
// 4. Purely numeric results get a “site-” prefix.
// 5. Empty results become “site”.
// 6. Cut at 63 bytes, then trim a trailing dash if the cut landed on one.

package draft

import (
	"strconv"
	"strings"
	"time"
)

// MaxLabelLen is the DNS limit for a single label.
const MaxLabelLen = 63

// MakeSubdomain returns the candidate for b and whether it came from an
// explicit preference (preferences are never rewritten on collision).
func MakeSubdomain(b Brief) (string, bool) {
	if p := strings.ToLower(strings.TrimSpace(b.PreferredSubdomain)); p != "" {
		return p, true
	}
	return Slug(b.BusinessName), false
}

// Slug converts text → lower-kebab ASCII hostname label.
func Slug(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastWasDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		case r == '\'' || r == '’':
			// "Luigi's" reads better as "luigis" than "luigi-s".
		default:
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	label := strings.Trim(b.String(), "-")
	switch {
	case label == "":
		return "site"
	case isNumeric(label):
		label = "site-" + label
	}
	return truncateLabel(label, MaxLabelLen)
}

// ValidLabel enforces: 1–63 chars of [a-z0-9-], not purely numeric, no
// leading or trailing hyphen.
func ValidLabel(s string) bool {
	if len(s) == 0 || len(s) > MaxLabelLen {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' || isNumeric(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return false
		}
	}
	return true
}

// Disambiguate returns the retry candidate for attempt n (n ≥ 2 yields
// "base-n").  Attempts past maxCounter fall back to a base36 timestamp
// suffix, which is unique enough for a human-facing hostname.
func Disambiguate(base string, n, maxCounter int, now time.Time) string {
	var suffix string
	if n <= maxCounter {
		suffix = "-" + strconv.Itoa(n)
	} else {
		suffix = "-" + strconv.FormatInt(now.UnixMilli(), 36)
	}
	return truncateLabel(base, MaxLabelLen-len(suffix)) + suffix
}

func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
