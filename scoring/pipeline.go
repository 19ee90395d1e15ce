package scoring

import (
	"ftc/repository"
)

type PipelineBucket string

const (
	// BucketApplicationReview: no completed evaluation yet.
	BucketApplicationReview PipelineBucket = "applicationReview"
	// BucketConsensus: at least one completed evaluation, ready for a
	// decision.
	BucketConsensus PipelineBucket = "consensus"
	// BucketFinalDecision: a final decision has been recorded.
	BucketFinalDecision PipelineBucket = "finalDecision"
)

// Classify puts an application into exactly one pipeline bucket. The
// final decision takes precedence regardless of evaluation count.
func Classify(application *repository.Application) PipelineBucket {
	if application.Consensus != nil && application.Consensus.FinalDecision != nil {
		return BucketFinalDecision
	}
	for _, evaluation := range application.Evaluations {
		if evaluation.Status == repository.EvaluationCompleted {
			return BucketConsensus
		}
	}
	return BucketApplicationReview
}

// HasEvaluationBy reports whether the reviewer has at least one
// evaluation on the application, at any stage.
func HasEvaluationBy(application *repository.Application, reviewerId int) bool {
	for _, evaluation := range application.Evaluations {
		if evaluation.ReviewerId == reviewerId {
			return true
		}
	}
	return false
}
