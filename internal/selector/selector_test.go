package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churnlab/modelregistry/internal/models"
	"github.com/churnlab/modelregistry/internal/selector"
)

func candidate(name string, metrics map[string]float64) models.Candidate {
	return models.Candidate{Name: name, Metrics: metrics}
}

func TestSelectPicksHighestScore(t *testing.T) {
	set := []models.Candidate{
		candidate("baseline_logreg", map[string]float64{"pr_auc": 0.40}),
		candidate("candidate_hgb", map[string]float64{"pr_auc": 0.90}),
	}
	sel, err := selector.Select(set, "pr_auc")
	require.NoError(t, err)
	assert.Equal(t, "candidate_hgb", sel.Winner.Name)
	assert.Equal(t, 0.90, sel.Score)
}

func TestSelectIsDeterministic(t *testing.T) {
	set := []models.Candidate{
		candidate("a", map[string]float64{"pr_auc": 0.71}),
		candidate("b", map[string]float64{"pr_auc": 0.55}),
		candidate("c", map[string]float64{"pr_auc": 0.68}),
	}
	first, err := selector.Select(set, "pr_auc")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := selector.Select(set, "pr_auc")
		require.NoError(t, err)
		assert.Equal(t, first.Winner.Name, again.Winner.Name)
		assert.Equal(t, first.Score, again.Score)
	}
}

func TestSelectMissingMetricScoresZero(t *testing.T) {
	sel, err := selector.Select([]models.Candidate{
		candidate("no_metric", map[string]float64{"accuracy": 0.99}),
	}, "pr_auc")
	require.NoError(t, err)
	assert.Equal(t, "no_metric", sel.Winner.Name)
	assert.Equal(t, 0.0, sel.Score)
}

func TestSelectPrefersScoredOverUnscored(t *testing.T) {
	sel, err := selector.Select([]models.Candidate{
		candidate("unscored", nil),
		candidate("scored", map[string]float64{"pr_auc": 0.01}),
	}, "pr_auc")
	require.NoError(t, err)
	assert.Equal(t, "scored", sel.Winner.Name)
}

func TestSelectTieBreakFirstInOrder(t *testing.T) {
	set := []models.Candidate{
		candidate("baseline_logreg", map[string]float64{"pr_auc": 0.75}),
		candidate("candidate_hgb", map[string]float64{"pr_auc": 0.75}),
	}
	for i := 0; i < 20; i++ {
		sel, err := selector.Select(set, "pr_auc")
		require.NoError(t, err)
		assert.Equal(t, "baseline_logreg", sel.Winner.Name)
		assert.Equal(t, 0.75, sel.Score)
	}
}

func TestSelectEmptySet(t *testing.T) {
	_, err := selector.Select(nil, "pr_auc")
	assert.ErrorIs(t, err, selector.ErrEmptyCandidates)
}
