package agent

import (
	"math"
	"strings"
)

// Confidence is a fixed heuristic: 0.5, plus 0.3 with rows, plus 0.1 with fragments, minus
// 0.2 after any repair, clamped to [0, 1] and rounded to two decimals.
func Confidence(hasRows, hasFragments, repaired bool) float64 {
	c := 0.5
	if hasRows {
		c += 0.3
	}
	if hasFragments {
		c += 0.1
	}
	if repaired {
		c -= 0.2
	}
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*100) / 100
}

// Citations lists the canonical tables mentioned in the query followed by every fragment
// id, in retrieval order. Duplicates are kept.
func Citations(query string, tables []string, fragments []Fragment) []string {
	out := []string{}
	if query != "" {
		lower := strings.ToLower(query)
		for _, t := range tables {
			if strings.Contains(lower, strings.ToLower(t)) || strings.Contains(query, `"`+t+`"`) {
				out = append(out, t)
			}
		}
	}
	for _, f := range fragments {
		out = append(out, f.ID)
	}
	return out
}
