package matching

import (
	"sort"

	"trackmatch/internal/domain"
)

// DefaultMinScore is the lowest score a selection is considered confident at.
const DefaultMinScore = 80.0

// Selection is the link picked from a score map.
type Selection struct {
	domain.ScoredLink
	// Accepted is false when the link was only the best of a low-scoring field.
	Accepted bool
}

// Rank orders score map entries by descending score. Ties keep insertion order.
func Rank(scores *domain.ScoreMap) []domain.ScoredLink {
	ranked := scores.Entries()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Select returns the highest scoring link. A best score under minScore is
// still returned, flagged as not accepted. ok is false only for an empty map.
func Select(scores *domain.ScoreMap, minScore float64) (Selection, bool) {
	ranked := Rank(scores)
	if len(ranked) == 0 {
		return Selection{}, false
	}
	best := ranked[0]
	return Selection{ScoredLink: best, Accepted: best.Score >= minScore}, true
}

// SelectFirst takes the first candidate unconditionally with a score of 100.
// It is used when result filtering is turned off.
func SelectFirst(candidates []domain.Candidate) (Selection, bool) {
	if len(candidates) == 0 {
		return Selection{}, false
	}
	return Selection{
		ScoredLink: domain.ScoredLink{Link: candidates[0].Link, Score: perfectMatch},
		Accepted:   true,
	}, true
}
