package ranking

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Booster scores a chunk against a query.
type Booster func(chunk, query string) float64

// KeywordBoost counts the whitespace-separated query tokens that occur
// anywhere in chunk as a substring. Repeated query tokens count each time.
func KeywordBoost(chunk, query string) float64 {
	n := 0
	for _, word := range strings.Fields(query) {
		if strings.Contains(chunk, word) {
			n++
		}
	}
	return float64(n)
}

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// OchiaiBoost scores the overlap of the lowercase word sets of chunk and
// query as |A∩B| / sqrt(|A||B|).
func OchiaiBoost(chunk, query string) float64 {
	qset := tokenSet(query)
	cset := tokenSet(chunk)
	if len(qset) == 0 || len(cset) == 0 {
		return 0
	}
	inter := 0
	for t := range cset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(cset)))
}

func tokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// BoosterByName resolves a configured booster. "none" and "" disable boosting.
func BoosterByName(name string) (Booster, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "keyword":
		return KeywordBoost, nil
	case "ochiai":
		return OchiaiBoost, nil
	default:
		return nil, fmt.Errorf("unknown booster: %s", name)
	}
}
