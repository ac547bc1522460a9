// Package textfields handles the denormalized multi-line text columns researchers fill in
// by hand (articles, books, projects, ...). Entries are one per line and carry no structure.
package textfields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Split breaks a multi-value field into its trimmed, non-blank lines, in order.
// "\r\n" and "\n" are both line separators. Blank and whitespace-only lines are dropped,
// whitespace inside a line is kept verbatim. The empty string yields an empty slice.
func Split(field string) []string {
	if field == "" {
		return []string{}
	}
	lines := strings.Split(field, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// SplitNullable is Split for nullable columns; nil yields an empty slice.
func SplitNullable(field *string) []string {
	if field == nil {
		return []string{}
	}
	return Split(*field)
}

// Count returns len(SplitNullable(field)) without keeping the lines.
func Count(field *string) int {
	if field == nil {
		return 0
	}
	n := 0
	for _, line := range strings.Split(*field, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// FirstNonEmpty returns the first candidate that is non-nil and not blank, trimmed.
// If every candidate is absent the fallback is returned.
func FirstNonEmpty(fallback string, candidates ...*string) string {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if v := strings.TrimSpace(*c); v != "" {
			return v
		}
	}
	return fallback
}

// Fold lower-cases s and strips combining marks so "Martínez" matches "marti".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// ContainsFolded reports whether field contains foldedQuery after folding field.
// foldedQuery must already have gone through Fold.
func ContainsFolded(field string, foldedQuery string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(Fold(field), foldedQuery)
}

// ContainsFoldedNullable is ContainsFolded for nullable columns.
func ContainsFoldedNullable(field *string, foldedQuery string) bool {
	if field == nil {
		return false
	}
	return ContainsFolded(*field, foldedQuery)
}

// Slugify turns a display name into a URL-safe slug: folded, with every run of
// non-alphanumeric characters collapsed into a single hyphen.
func Slugify(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Ptr returns a pointer to s, or nil when s is blank.
func Ptr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Value dereferences a nullable column, "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
