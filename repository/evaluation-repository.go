package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "PENDING"
	EvaluationInProgress EvaluationStatus = "IN_PROGRESS"
	EvaluationCompleted  EvaluationStatus = "COMPLETED"
	EvaluationReviewed   EvaluationStatus = "REVIEWED"
)

type Recommendation string

const (
	RecommendAccept        Recommendation = "ACCEPT"
	RecommendReject        Recommendation = "REJECT"
	RecommendWaitlist      Recommendation = "WAITLIST"
	RecommendNeedsMoreInfo Recommendation = "NEEDS_MORE_INFO"
)

type ApplicationEvaluation struct {
	Id               int              `gorm:"primaryKey"`
	ApplicationId    int              `gorm:"not null;uniqueIndex:idx_evaluation_app_reviewer_stage;references:applications(id)"`
	ReviewerId       int              `gorm:"not null;uniqueIndex:idx_evaluation_app_reviewer_stage;references:users(id)"`
	Stage            ReviewStage      `gorm:"not null;type:ftc.review_stage;uniqueIndex:idx_evaluation_app_reviewer_stage"`
	Status           EvaluationStatus `gorm:"not null;type:ftc.evaluation_status;default:'PENDING'"`
	OverallScore     *float64         `gorm:"null"`
	Recommendation   *Recommendation  `gorm:"null;type:ftc.recommendation"`
	Confidence       *int             `gorm:"null"`
	Comments         *string          `gorm:"null"`
	TimeSpentMinutes *int             `gorm:"null"`
	VideoWatched     bool             `gorm:"not null;default:false"`
	VideoTimestamps  *string          `gorm:"null"`
	VideoQuality     *int             `gorm:"null"`
	CompletedAt      *time.Time       `gorm:"null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Application   *Application         `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
	Reviewer      *User                `gorm:"foreignKey:ReviewerId;constraint:OnDelete:CASCADE;"`
	Scores        []*EvaluationScore   `gorm:"foreignKey:EvaluationId;constraint:OnDelete:CASCADE;"`
	CommentThread []*EvaluationComment `gorm:"foreignKey:EvaluationId;constraint:OnDelete:CASCADE;"`
}

type EvaluationScore struct {
	Id           int     `gorm:"primaryKey"`
	EvaluationId int     `gorm:"not null;uniqueIndex:idx_score_evaluation_criteria;references:application_evaluations(id)"`
	CriteriaId   int     `gorm:"not null;uniqueIndex:idx_score_evaluation_criteria;references:evaluation_criteria(id)"`
	Score        float64 `gorm:"not null"`
	Reasoning    *string `gorm:"null"`

	Criteria *EvaluationCriteria `gorm:"foreignKey:CriteriaId;constraint:OnDelete:CASCADE;"`
}

type EvaluationComment struct {
	Id           int     `gorm:"primaryKey"`
	EvaluationId int     `gorm:"not null;references:application_evaluations(id)"`
	QuestionKey  *string `gorm:"null"`
	Comment      string  `gorm:"not null"`
	IsPrivate    bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

func (r *EvaluationRepository) GetEvaluationById(id int, preloads ...string) (*ApplicationEvaluation, error) {
	var evaluation ApplicationEvaluation
	query := r.DB
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	result := query.First(&evaluation, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &evaluation, nil
}

func (r *EvaluationRepository) GetEvaluation(applicationId int, reviewerId int, stage ReviewStage) (*ApplicationEvaluation, error) {
	var evaluation ApplicationEvaluation
	result := r.DB.First(&evaluation, "application_id = ? AND reviewer_id = ? AND stage = ?", applicationId, reviewerId, stage)
	if result.Error != nil {
		return nil, result.Error
	}
	return &evaluation, nil
}

// GetCompletedEvaluations returns all completed evaluations for an
// application with reviewer identity, scores joined to their criteria
// and the comment thread, most recently completed first.
func (r *EvaluationRepository) GetCompletedEvaluations(applicationId int) ([]*ApplicationEvaluation, error) {
	var evaluations []*ApplicationEvaluation
	result := r.DB.
		Preload("Reviewer").
		Preload("Scores.Criteria").
		Preload("CommentThread").
		Order("completed_at DESC").
		Find(&evaluations, "application_id = ? AND status = ?", applicationId, EvaluationCompleted)
	if result.Error != nil {
		return nil, result.Error
	}
	return evaluations, nil
}

func (r *EvaluationRepository) SaveEvaluation(evaluation *ApplicationEvaluation) (*ApplicationEvaluation, error) {
	result := r.DB.Save(evaluation)
	if result.Error != nil {
		return nil, result.Error
	}
	return evaluation, nil
}

// UpsertScore replaces score and reasoning for (evaluation, criteria).
// It never accumulates; the unique pair index is the conflict target.
func (r *EvaluationRepository) UpsertScore(score *EvaluationScore) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "evaluation_id"}, {Name: "criteria_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "reasoning"}),
	}).Create(score).Error
}

func (r *EvaluationRepository) GetScores(evaluationId int) ([]*EvaluationScore, error) {
	var scores []*EvaluationScore
	result := r.DB.Preload("Criteria").Find(&scores, "evaluation_id = ?", evaluationId)
	if result.Error != nil {
		return nil, result.Error
	}
	return scores, nil
}

func (r *EvaluationRepository) AddComment(comment *EvaluationComment) (*EvaluationComment, error) {
	result := r.DB.Create(comment)
	if result.Error != nil {
		return nil, result.Error
	}
	return comment, nil
}
