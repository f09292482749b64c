// Package strings provides the text normalisation and similarity primitives used
// to compare free-form supplier attributes against catalog values.
package strings

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips diacritics and punctuation, and collapses runs of
// whitespace to a single space.
//
//	Normalize("  Domaine du Vieux Télégraphe! ") // "domaine du vieux telegraphe"
//	Normalize("Châteauneuf-du-Pape")             // "chateauneufdupape"
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain keeps internal buffers, so build one per call.
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeList splits a delimited list ("Grenache, Syrah / Mourvèdre") into
// normalised, de-duplicated entries in their original order.
func NormalizeList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '/' || r == ';' || r == '&' || r == '+'
	})
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		n := Normalize(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SameSet reports whether two delimited lists contain the same normalised entries,
// ignoring order. Two empty lists are not considered equal.
func SameSet(a, b string) bool {
	left, right := NormalizeList(a), NormalizeList(b)
	if len(left) == 0 || len(left) != len(right) {
		return false
	}
	set := make(map[string]struct{}, len(left))
	for _, v := range left {
		set[v] = struct{}{}
	}
	for _, v := range right {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// Similarity returns an edit-distance ratio in [0,1] between two already
// normalised strings: 1 - distance/len(longer). Empty input scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
