package evidence

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reHow   = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|next|finally)\b`)
	reSplit = regexp.MustCompile(`[\s\p{P}\p{S}]+`)
)

// Terms tokenizes a query into lowercase match terms. Words in scripts
// written without spaces (CJK) are split into rune bigrams.
func Terms(query string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, w := range reSplit.Split(strings.ToLower(query), -1) {
		r := []rune(w)
		switch {
		case len(r) == 0:
		case isUnspaced(r):
			if len(r) == 1 {
				add(w)
				continue
			}
			for i := 0; i+1 < len(r); i++ {
				add(string(r[i : i+2]))
			}
		case len(r) >= 2:
			add(w)
		}
	}
	return out
}

func isUnspaced(r []rune) bool {
	for _, c := range r {
		if unicode.In(c, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai) {
			return true
		}
	}
	return false
}

// Score rates how strongly text mentions the query terms, in [0..10].
func Score(text string, terms []string) float64 {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || len(terms) == 0 {
		return 0
	}
	var s float64
	for _, term := range terms {
		s += float64(strings.Count(t, term))
	}
	if s == 0 {
		return 0
	}
	// procedural phrasing tends to carry the answer to how-to queries
	if reHow.MatchString(t) {
		s += 0.5
	}
	return clamp(s, 0, 10)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
