package service

import (
	"context"
	"time"

	"ftc/app_error"
	"ftc/client"
	"ftc/config"
	"ftc/metrics"
	"ftc/repository"

	"gorm.io/gorm"
)

// AutoScoreService invokes the external AI scoring collaborator. Its
// result is advisory: nothing is persisted here, the reviewer commits
// accepted values through the normal scoring operations.
type AutoScoreService struct {
	evaluationService     *EvaluationService
	criteriaRepository    *repository.CriteriaRepository
	applicationRepository *repository.ApplicationRepository
	scorer                client.ScoringProvider
}

func NewAutoScoreService(db *gorm.DB, scorer client.ScoringProvider) *AutoScoreService {
	return &AutoScoreService{
		evaluationService:     NewEvaluationService(db),
		criteriaRepository:    repository.NewCriteriaRepository(db),
		applicationRepository: repository.NewApplicationRepository(db),
		scorer:                scorer,
	}
}

// AutoScore asks the AI collaborator for a candidate score set for the
// caller's evaluation of the application at the stage. The caller must
// already own that evaluation, which prevents scoring applications not
// assigned to you. Provider failure surfaces as a retryable error with
// no state change; AI_SCORE_TIMEOUT_SECONDS bounds the call's
// wall-clock time on top of the caller's context.
func (s *AutoScoreService) AutoScore(ctx context.Context, user *repository.User, applicationId int, stage repository.ReviewStage) (*client.ScoreSet, error) {
	if _, err := s.evaluationService.GetEvaluationFor(user, applicationId, stage); err != nil {
		return nil, err
	}
	criteria, err := s.criteriaRepository.GetActiveCriteria()
	if err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return nil, app_error.NotFound("no active evaluation criteria are configured")
	}
	application, err := s.applicationRepository.GetApplicationById(applicationId, "Responses.Question")
	if err != nil {
		return nil, app_error.NotFound("application with id %d not found", applicationId)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, time.Duration(config.Env().AIScoreTimeout)*time.Second)
	defer cancel()

	metrics.AIScoreRequestCounter.Inc()
	start := time.Now()
	scoreSet, err := s.scorer.ScoreApplication(scoreCtx, application, criteria, stage)
	metrics.AIScoreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AIScoreErrorCounter.Inc()
		return nil, app_error.Unavailable("ai scoring failed: %v", err)
	}
	return scoreSet, nil
}
