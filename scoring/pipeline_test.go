package scoring

import (
	"testing"

	"ftc/repository"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNoEvaluations(t *testing.T) {
	application := &repository.Application{Status: repository.ApplicationSubmitted}
	assert.Equal(t, BucketApplicationReview, Classify(application))
}

func TestClassifyPendingEvaluationsOnly(t *testing.T) {
	application := &repository.Application{
		Evaluations: []*repository.ApplicationEvaluation{
			{Status: repository.EvaluationPending},
			{Status: repository.EvaluationInProgress},
		},
	}
	assert.Equal(t, BucketApplicationReview, Classify(application))
}

func TestClassifyCompletedEvaluation(t *testing.T) {
	application := &repository.Application{
		Evaluations: []*repository.ApplicationEvaluation{
			{Status: repository.EvaluationPending},
			{Status: repository.EvaluationCompleted},
		},
		Consensus: &repository.ReviewConsensus{},
	}
	assert.Equal(t, BucketConsensus, Classify(application))
}

func TestClassifyFinalDecisionWinsRegardlessOfEvaluations(t *testing.T) {
	decision := repository.DecisionAccept
	application := &repository.Application{
		Consensus: &repository.ReviewConsensus{FinalDecision: &decision},
	}
	assert.Equal(t, BucketFinalDecision, Classify(application))

	application.Evaluations = []*repository.ApplicationEvaluation{
		{Status: repository.EvaluationCompleted},
	}
	assert.Equal(t, BucketFinalDecision, Classify(application))
}

func TestHasEvaluationBy(t *testing.T) {
	application := &repository.Application{
		Evaluations: []*repository.ApplicationEvaluation{
			{ReviewerId: 7, Stage: repository.StageScreening},
			{ReviewerId: 9, Stage: repository.StageVideoReview},
		},
	}
	assert.True(t, HasEvaluationBy(application, 7))
	assert.True(t, HasEvaluationBy(application, 9))
	assert.False(t, HasEvaluationBy(application, 8))
}
