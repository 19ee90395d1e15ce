package service

import (
	"errors"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/scoring"
	"ftc/utils"

	"gorm.io/gorm"
)

type EvaluationService struct {
	db                   *gorm.DB
	evaluationRepository *repository.EvaluationRepository
	criteriaRepository   *repository.CriteriaRepository
}

func NewEvaluationService(db *gorm.DB) *EvaluationService {
	return &EvaluationService{
		db:                   db,
		evaluationRepository: repository.NewEvaluationRepository(db),
		criteriaRepository:   repository.NewCriteriaRepository(db),
	}
}

func (s *EvaluationService) GetEvaluation(user *repository.User, evaluationId int) (*repository.ApplicationEvaluation, error) {
	evaluation, err := s.evaluationRepository.GetEvaluationById(evaluationId, "Scores.Criteria", "CommentThread")
	if err != nil {
		return nil, app_error.NotFound("evaluation with id %d not found", evaluationId)
	}
	// admins and staff may read all evaluations, reviewers only their own
	if evaluation.ReviewerId != user.Id && !user.IsStaff() {
		return nil, app_error.Forbidden("you are not the assigned reviewer for this evaluation")
	}
	return evaluation, nil
}

// recompute refreshes the derived overall score from the scores
// currently recorded, inside the caller's transaction. With no scores
// present it leaves the stored value as-is.
func recompute(tx *gorm.DB, evaluationId int) error {
	txRepository := repository.NewEvaluationRepository(tx)
	scores, err := txRepository.GetScores(evaluationId)
	if err != nil {
		return err
	}
	overall, ok := scoring.Overall(scores)
	if !ok {
		return nil
	}
	return tx.Model(&repository.ApplicationEvaluation{}).
		Where("id = ?", evaluationId).
		Update("overall_score", overall).Error
}

// UpsertScore writes one per-criterion score and recomputes the
// evaluation's overall score in the same transaction, so the derived
// value is never observably stale.
func (s *EvaluationService) UpsertScore(user *repository.User, evaluationId int, criteriaId int, score float64, reasoning *string) (*repository.ApplicationEvaluation, error) {
	if score < 0 || score > 10 {
		return nil, app_error.BadRequest("score must be within [0, 10]")
	}
	evaluation, err := s.evaluationRepository.GetEvaluationById(evaluationId)
	if err != nil {
		return nil, app_error.NotFound("evaluation with id %d not found", evaluationId)
	}
	if evaluation.ReviewerId != user.Id {
		return nil, app_error.Forbidden("you are not the assigned reviewer for this evaluation")
	}
	criteria, err := s.criteriaRepository.GetCriteriaById(criteriaId)
	if err != nil {
		return nil, app_error.NotFound("criteria with id %d not found", criteriaId)
	}
	if !criteria.IsActive {
		return nil, app_error.BadRequest("criteria %s is inactive and cannot be scored", criteria.Name)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		txRepository := repository.NewEvaluationRepository(tx)
		if err := txRepository.UpsertScore(&repository.EvaluationScore{
			EvaluationId: evaluationId,
			CriteriaId:   criteriaId,
			Score:        score,
			Reasoning:    reasoning,
		}); err != nil {
			return err
		}
		return recompute(tx, evaluationId)
	})
	if err != nil {
		return nil, err
	}
	return s.evaluationRepository.GetEvaluationById(evaluationId, "Scores.Criteria")
}

type EvaluationUpdate struct {
	Status           *repository.EvaluationStatus
	OverallScore     *float64
	Recommendation   *repository.Recommendation
	Confidence       *int
	Comments         *string
	TimeSpentMinutes *int
	VideoWatched     *bool
	VideoTimestamps  *string
	VideoQuality     *int
}

var evaluationStatuses = []repository.EvaluationStatus{
	repository.EvaluationPending,
	repository.EvaluationInProgress,
	repository.EvaluationCompleted,
	repository.EvaluationReviewed,
}

func (u *EvaluationUpdate) validate() error {
	if u.Status != nil && !utils.Contains(evaluationStatuses, *u.Status) {
		return app_error.BadRequest("unknown evaluation status %s", *u.Status)
	}
	if u.Confidence != nil && (*u.Confidence < 1 || *u.Confidence > 5) {
		return app_error.BadRequest("confidence must be between 1 and 5")
	}
	if u.VideoQuality != nil && (*u.VideoQuality < 1 || *u.VideoQuality > 5) {
		return app_error.BadRequest("video quality must be between 1 and 5")
	}
	return nil
}

// UpdateEvaluation applies reviewer-owned fields. Setting status to
// COMPLETED stamps completed_at server-side in the same write. After
// any update, an evaluation with at least one score gets its overall
// score recomputed so an update can never leave a stale derived value.
func (s *EvaluationService) UpdateEvaluation(user *repository.User, evaluationId int, update *EvaluationUpdate) (*repository.ApplicationEvaluation, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}
	evaluation, err := s.evaluationRepository.GetEvaluationById(evaluationId)
	if err != nil {
		return nil, app_error.NotFound("evaluation with id %d not found", evaluationId)
	}
	if evaluation.ReviewerId != user.Id && !user.HasPermission(repository.PermissionAdmin) {
		return nil, app_error.Forbidden("you are not the assigned reviewer for this evaluation")
	}

	if update.Status != nil {
		evaluation.Status = *update.Status
		if *update.Status == repository.EvaluationCompleted {
			now := time.Now()
			evaluation.CompletedAt = &now
		}
	}
	if update.OverallScore != nil {
		evaluation.OverallScore = update.OverallScore
	}
	if update.Recommendation != nil {
		evaluation.Recommendation = update.Recommendation
	}
	if update.Confidence != nil {
		evaluation.Confidence = update.Confidence
	}
	if update.Comments != nil {
		evaluation.Comments = update.Comments
	}
	if update.TimeSpentMinutes != nil {
		evaluation.TimeSpentMinutes = update.TimeSpentMinutes
	}
	if update.VideoWatched != nil {
		evaluation.VideoWatched = *update.VideoWatched
	}
	if update.VideoTimestamps != nil {
		evaluation.VideoTimestamps = update.VideoTimestamps
	}
	if update.VideoQuality != nil {
		evaluation.VideoQuality = update.VideoQuality
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(evaluation).Error; err != nil {
			return err
		}
		return recompute(tx, evaluationId)
	})
	if err != nil {
		return nil, err
	}
	return s.evaluationRepository.GetEvaluationById(evaluationId, "Scores.Criteria")
}

func (s *EvaluationService) AddComment(user *repository.User, evaluationId int, questionKey *string, comment string, isPrivate *bool) (*repository.EvaluationComment, error) {
	if comment == "" {
		return nil, app_error.BadRequest("comment must not be empty")
	}
	evaluation, err := s.evaluationRepository.GetEvaluationById(evaluationId)
	if err != nil {
		return nil, app_error.NotFound("evaluation with id %d not found", evaluationId)
	}
	if evaluation.ReviewerId != user.Id {
		return nil, app_error.Forbidden("you are not the assigned reviewer for this evaluation")
	}
	private := true
	if isPrivate != nil {
		private = *isPrivate
	}
	return s.evaluationRepository.AddComment(&repository.EvaluationComment{
		EvaluationId: evaluationId,
		QuestionKey:  questionKey,
		Comment:      comment,
		IsPrivate:    private,
	})
}

// GetEvaluationFor finds the caller's own evaluation for the triple,
// distinguishing "not found" from records owned by other reviewers.
func (s *EvaluationService) GetEvaluationFor(user *repository.User, applicationId int, stage repository.ReviewStage) (*repository.ApplicationEvaluation, error) {
	evaluation, err := s.evaluationRepository.GetEvaluation(applicationId, user.Id, stage)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("no evaluation for application %d at stage %s is assigned to you", applicationId, stage)
		}
		return nil, err
	}
	return evaluation, nil
}
