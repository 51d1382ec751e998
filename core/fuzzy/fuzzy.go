// Package fuzzy finds the closest entry in a fixed pool of names using the
// Ratcliff/Obershelp similarity ratio.
package fuzzy

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the similarity of a and b in [0, 1]: twice the number of
// matched runes divided by the total rune count. Two empty strings score 1.
//
// The ratio is not symmetric. BestMatch passes the pool entry as a and the
// candidate as b.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

// BestMatch returns the pool entry most similar to candidate, provided its
// ratio is at least minRatio. Equal ratios resolve to the lexicographically
// greatest entry.
func BestMatch(candidate string, pool []string, minRatio float64) (string, bool) {
	b := splitRunes(candidate)
	m := difflib.NewMatcher(nil, b)

	var best string
	bestRatio := -1.0
	for _, entry := range pool {
		m.SetSeq1(splitRunes(entry))
		r := m.Ratio()
		if r < minRatio {
			continue
		}
		if r > bestRatio || (r == bestRatio && entry > best) {
			best, bestRatio = entry, r
		}
	}
	return best, bestRatio >= 0
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
