// Package entityresolution deduplicates subjects against the canonical
// entity graph: exact match on identifiers, fuzzy match on name/DOB/address,
// and merge-on-write when a later identifier exact-matches a second entity
// (spec §4.2).
package entityresolution

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var normalizer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
	cases.Fold(),
)

// normalize folds case, strips diacritics, and trims whitespace so fuzzy
// comparisons aren't thrown off by accents or casing.
func normalize(s string) string {
	out, _, err := transform.String(normalizer, strings.TrimSpace(s))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// jaroWinkler returns Jaro-Winkler similarity in [0,1] between a and b.
// Implemented directly since the provider pack carries no string-distance
// library; this is the standard Jaro with the Winkler common-prefix boost
// (prefix scale 0.1, max boosted prefix length 4).
func jaroWinkler(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1.0
	}
	j := jaro(a, b)
	if j <= 0 {
		return 0
	}
	prefix := 0
	maxPrefix := 4
	for prefix < len(a) && prefix < len(b) && prefix < maxPrefix && a[prefix] == b[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		if la == lb {
			return 1.0
		}
		return 0
	}

	matchDistance := max(la, lb)/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	aMatches := make([]bool, la)
	bMatches := make([]bool, lb)

	matches := 0
	for i := 0; i < la; i++ {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, lb)
		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions/2))/m) / 3.0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// tokenSortSimilarity compares two free-text strings (addresses) by
// splitting into tokens, sorting each independently, and comparing the
// rejoined strings with Jaro-Winkler — tolerant of reordered address
// components ("123 Main St, Suite 4" vs "Suite 4, 123 Main St").
func tokenSortSimilarity(a, b string) float64 {
	return jaroWinkler(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	fields := strings.Fields(normalize(s))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
