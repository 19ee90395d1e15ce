package scoring

import (
	"testing"

	"ftc/repository"

	"github.com/stretchr/testify/assert"
)

func score(value float64, weight float64) *repository.EvaluationScore {
	return &repository.EvaluationScore{
		Score:    value,
		Criteria: &repository.EvaluationCriteria{Weight: weight},
	}
}

func TestOverallNoScores(t *testing.T) {
	_, ok := Overall(nil)
	assert.False(t, ok)

	_, ok = Overall([]*repository.EvaluationScore{})
	assert.False(t, ok)
}

func TestOverallSingleScore(t *testing.T) {
	overall, ok := Overall([]*repository.EvaluationScore{score(7, 2.5)})
	assert.True(t, ok)
	assert.InDelta(t, 7, overall, 1e-9)
}

func TestOverallWeightedMean(t *testing.T) {
	scores := []*repository.EvaluationScore{
		score(10, 3),
		score(5, 1),
		score(0, 2),
	}
	// (10*3 + 5*1 + 0*2) / (3+1+2) = 35/6
	overall, ok := Overall(scores)
	assert.True(t, ok)
	assert.InDelta(t, 35.0/6.0, overall, 1e-9)
}

func TestOverallIsIdempotent(t *testing.T) {
	scores := []*repository.EvaluationScore{
		score(8.5, 1.2),
		score(3.25, 0.7),
		score(6, 2),
	}
	first, ok := Overall(scores)
	assert.True(t, ok)
	second, ok := Overall(scores)
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

func TestOverallMissingCriteriaFallsBackToUnitWeight(t *testing.T) {
	scores := []*repository.EvaluationScore{
		{Score: 4},
		{Score: 8},
	}
	overall, ok := Overall(scores)
	assert.True(t, ok)
	assert.InDelta(t, 6, overall, 1e-9)
}

func TestOverallZeroWeights(t *testing.T) {
	_, ok := Overall([]*repository.EvaluationScore{score(5, 0)})
	assert.False(t, ok)
}
