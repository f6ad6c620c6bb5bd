// Package namematch scores how closely a screened name resembles a listed name.
package namematch

import (
	"strings"
)

const (
	// Exact is the score of a case-insensitive equal name
	Exact = 100.0
	// Contained is the score when one name contains the other
	Contained = 90.0
)

// Score returns a similarity in [0,100] between candidate and reference.
// Rules apply in order: case-insensitive equality, substring containment in
// either direction, then the share of common words over the longer name.
func Score(candidate, reference string) float64 {
	a := normalize(candidate)
	b := normalize(reference)
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return Exact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return Contained
	}

	return tokenOverlap(strings.Fields(a), strings.Fields(b))
}

// Matches reports whether Score reaches threshold
func Matches(candidate, reference string, threshold float64) (float64, bool) {
	s := Score(candidate, reference)
	return s, s >= threshold
}

// ContainsKeyword reports whether text contains keyword as a substring,
// ignoring case
func ContainsKeyword(text, keyword string) bool {
	k := normalize(keyword)
	return k != "" && strings.Contains(normalize(text), k)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenOverlap(a, b []string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}

	words := make(map[string]struct{}, len(b))
	for _, w := range b {
		words[w] = struct{}{}
	}

	shared := 0
	seen := make(map[string]struct{}, len(a))
	for _, w := range a {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := words[w]; ok {
			shared++
		}
	}

	return float64(shared) / float64(longest) * 100
}
