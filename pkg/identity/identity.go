// Package identity maps free-text entity names to canonical identifiers.
// The same slug rules are applied at ingestion (to mint and match entity
// ids) and at retrieval (to match relationship endpoints), so a name
// resolves to the same entity no matter where it is seen.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a stable entity id from a display name: lowercase,
// diacritics stripped, every run of non-alphanumeric characters collapsed
// to a single hyphen, leading and trailing hyphens trimmed.
//
// Slugify is pure and idempotent. Two distinct display names that slugify
// identically are treated as the same entity; that is the collision
// policy, not a bug.
func Slugify(name string) string {
	s, _, err := transform.String(deaccent, name)
	if err != nil {
		s = name
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	hyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
		} else {
			hyphen = true
		}
	}
	return b.String()
}

// SanitizeLabel reduces a free-text relation name to a charset safe for
// use as a graph edge label: uppercase, runs of anything outside
// [A-Za-z0-9_] collapsed to a single underscore, trimmed. Empty input
// falls back to RELATED_TO. This is the single label-injection boundary;
// call sites must not pre-sanitize.
func SanitizeLabel(relType string) string {
	var b strings.Builder
	b.Grow(len(relType))
	gap := false
	for _, r := range strings.ToUpper(relType) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
		} else {
			gap = true
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}

// Candidate is one entry of the entity set endpoint names are resolved
// against. Callers pass candidates in insertion order; containment
// matching honors that order.
type Candidate struct {
	ID   string
	Name string
}

// Resolve maps a raw endpoint name extracted by the language model to a
// canonical entity id. Matching is tried in order: exact slug match,
// case-insensitive exact name match, then substring containment in either
// direction with the first candidate in insertion order winning. Returns
// false when nothing matches; the caller records a linkage failure rather
// than erroring.
func Resolve(name string, candidates []Candidate) (string, bool) {
	if name == "" || len(candidates) == 0 {
		return "", false
	}

	slug := Slugify(name)
	for _, c := range candidates {
		if c.ID == slug {
			return c.ID, true
		}
	}

	lower := strings.ToLower(name)
	for _, c := range candidates {
		if strings.ToLower(c.Name) == lower {
			return c.ID, true
		}
	}

	for _, c := range candidates {
		cl := strings.ToLower(c.Name)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return c.ID, true
		}
	}

	return "", false
}
