package repository

import (
	"time"

	"gorm.io/gorm"
)

type ReviewStage string

const (
	StageScreening      ReviewStage = "SCREENING"
	StageDetailedReview ReviewStage = "DETAILED_REVIEW"
	StageVideoReview    ReviewStage = "VIDEO_REVIEW"
	StageConsensus      ReviewStage = "CONSENSUS"
	StageFinalDecision  ReviewStage = "FINAL_DECISION"
)

type ReviewerAssignment struct {
	Id            int         `gorm:"primaryKey"`
	ApplicationId int         `gorm:"not null;uniqueIndex:idx_assignment_app_reviewer_stage;references:applications(id)"`
	ReviewerId    int         `gorm:"not null;uniqueIndex:idx_assignment_app_reviewer_stage;references:users(id)"`
	Stage         ReviewStage `gorm:"not null;type:ftc.review_stage;uniqueIndex:idx_assignment_app_reviewer_stage"`
	Priority      int         `gorm:"not null;default:0"`
	DueDate       *time.Time  `gorm:"null"`
	Notes         *string     `gorm:"null"`
	AssignedById  int         `gorm:"not null;references:users(id)"`
	AssignedAt    time.Time   `gorm:"not null"`

	Application *Application `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
	Reviewer    *User        `gorm:"foreignKey:ReviewerId;constraint:OnDelete:CASCADE;"`
}

// AvailableApplication is one row of the reviewer's self-assignment
// queue, annotated with how many other reviewers already picked up the
// application at the stage.
type AvailableApplication struct {
	ApplicationId            int       `json:"application_id"`
	EventId                  int       `json:"event_id"`
	SubmittedAt              time.Time `json:"submitted_at"`
	AssignmentCount          int       `json:"assignment_count"`
	CompletedEvaluationCount int       `json:"completed_evaluation_count"`
}

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) GetAssignment(applicationId int, reviewerId int, stage ReviewStage) (*ReviewerAssignment, error) {
	var assignment ReviewerAssignment
	result := r.DB.First(&assignment, "application_id = ? AND reviewer_id = ? AND stage = ?", applicationId, reviewerId, stage)
	if result.Error != nil {
		return nil, result.Error
	}
	return &assignment, nil
}

// GetAssignedApplicationIds returns the subset of applicationIds that
// already have an assignment for (reviewer, stage). Used to filter
// bulk creation instead of failing the whole batch on a duplicate.
func (r *AssignmentRepository) GetAssignedApplicationIds(applicationIds []int, reviewerId int, stage ReviewStage) ([]int, error) {
	var ids []int
	result := r.DB.Model(&ReviewerAssignment{}).
		Where("application_id IN ? AND reviewer_id = ? AND stage = ?", applicationIds, reviewerId, stage).
		Pluck("application_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// GetAvailableApplications returns up to limit applications in a
// reviewable status that the reviewer has not claimed for the stage,
// oldest-submitted-first, with assignment/evaluation counts from other
// reviewers for load-balancing visibility. eventId 0 means all events.
func (r *AssignmentRepository) GetAvailableApplications(reviewerId int, eventId int, stage ReviewStage, limit int) ([]*AvailableApplication, error) {
	query := `
	SELECT
		app.id AS application_id,
		app.event_id,
		app.submitted_at,
		COUNT(DISTINCT assignment.id) AS assignment_count,
		COUNT(DISTINCT evaluation.id) FILTER (WHERE evaluation.status = 'COMPLETED') AS completed_evaluation_count
	FROM
		ftc.applications AS app
	LEFT JOIN
		ftc.reviewer_assignments AS assignment
		ON assignment.application_id = app.id AND assignment.stage = @stage
	LEFT JOIN
		ftc.application_evaluations AS evaluation
		ON evaluation.application_id = app.id AND evaluation.stage = @stage
	WHERE
		app.status IN ('SUBMITTED', 'UNDER_REVIEW')
		AND (@eventId = 0 OR app.event_id = @eventId)
		AND NOT EXISTS (
			SELECT 1 FROM ftc.reviewer_assignments AS mine
			WHERE mine.application_id = app.id AND mine.reviewer_id = @reviewerId AND mine.stage = @stage
		)
	GROUP BY
		app.id, app.event_id, app.submitted_at
	ORDER BY
		app.submitted_at ASC
	LIMIT @limit;
	`

	applications := make([]*AvailableApplication, 0)
	err := r.DB.Raw(query, map[string]interface{}{
		"reviewerId": reviewerId,
		"eventId":    eventId,
		"stage":      stage,
		"limit":      limit,
	}).Scan(&applications).Error
	if err != nil {
		return nil, err
	}
	return applications, nil
}
