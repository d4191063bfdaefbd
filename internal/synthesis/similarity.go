package synthesis

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var caseFolder = cases.Fold()

// normalizeText case-folds the input and collapses every run of
// non-alphanumeric characters into a single space.
func normalizeText(s string) string {
	folded := caseFolder.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// trigrams returns the set of word-padded trigrams in s, following the
// pg_trgm convention of two leading and one trailing space per word.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(normalizeText(s)) {
		padded := "  " + word + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns the trigram Jaccard similarity of two strings in [0,1].
// Identical strings score 1; strings sharing no trigrams score 0.
func Similarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
