// Package selector ranks a set of candidates by a single primary metric.
package selector

import (
	"errors"
	"fmt"

	"github.com/churnlab/modelregistry/internal/models"
)

// ErrEmptyCandidates indicates Select was invoked with zero candidates. The
// metrics reader already guards this, but Select guards independently.
var ErrEmptyCandidates = errors.New("empty candidate set")

// Score extracts the primary metric from a candidate. A missing metric scores
// exactly 0.0: candidates with a valid score always outrank ones whose score
// could not be read, without turning an unparseable record into a hard
// failure. This is deliberate promotion policy, not error suppression.
func Score(c models.Candidate, primaryMetric string) float64 {
	return c.Metrics[primaryMetric]
}

// Select picks the candidate with the strictly greatest primary-metric score.
// Ties go to the first candidate in the given order, which callers supply as
// the order candidate names were requested, so repeated runs over the same
// input pick the same winner.
func Select(candidates []models.Candidate, primaryMetric string) (models.Selection, error) {
	if len(candidates) == 0 {
		return models.Selection{}, fmt.Errorf("%w: nothing to select for metric %q", ErrEmptyCandidates, primaryMetric)
	}
	best := candidates[0]
	bestScore := Score(best, primaryMetric)
	for _, c := range candidates[1:] {
		if s := Score(c, primaryMetric); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return models.Selection{Winner: best, Score: bestScore}, nil
}
