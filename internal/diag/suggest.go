package diag

import (
	"math"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the candidate closest to name by edit distance, or "" when
// nothing is close enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best := ""
	score := math.MaxInt
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < score {
			score = d
			best = c
		}
	}

	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}
	if score <= limit {
		return best
	}
	return ""
}
