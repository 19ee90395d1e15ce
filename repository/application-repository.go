package repository

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationDraft       ApplicationStatus = "DRAFT"
	ApplicationSubmitted   ApplicationStatus = "SUBMITTED"
	ApplicationUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationAccepted    ApplicationStatus = "ACCEPTED"
	ApplicationRejected    ApplicationStatus = "REJECTED"
	ApplicationWaitlisted  ApplicationStatus = "WAITLISTED"
)

type Event struct {
	Id   int    `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

type Application struct {
	Id          int               `gorm:"primaryKey"`
	EventId     int               `gorm:"not null;references:events(id)"`
	UserId      int               `gorm:"not null;references:users(id)"`
	Status      ApplicationStatus `gorm:"not null;type:ftc.application_status;default:'DRAFT'"`
	SubmittedAt *time.Time        `gorm:"null"`

	Event       *Event                   `gorm:"foreignKey:EventId;constraint:OnDelete:CASCADE;"`
	User        *User                    `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE;"`
	Responses   []*ApplicationResponse   `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
	Evaluations []*ApplicationEvaluation `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
	Consensus   *ReviewConsensus         `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
}

// IsReviewable reports whether reviewers may claim or score the
// application in its current lifecycle status.
func (a *Application) IsReviewable() bool {
	return a.Status == ApplicationSubmitted || a.Status == ApplicationUnderReview
}

// SortResponses orders the preloaded responses by their question's
// position, ascending. Callers rely on question order when rendering
// answers and when prompting the AI scorer.
func (a *Application) SortResponses() {
	sort.SliceStable(a.Responses, func(i, j int) bool {
		left, right := a.Responses[i].Question, a.Responses[j].Question
		if left == nil || right == nil {
			return left != nil
		}
		return left.SortOrder < right.SortOrder
	})
}

type ApplicationQuestion struct {
	Id          int    `gorm:"primaryKey"`
	EventId     int    `gorm:"not null;references:events(id)"`
	QuestionKey string `gorm:"not null"`
	Prompt      string `gorm:"not null"`
	SortOrder   int    `gorm:"not null;default:0"`

	Event *Event `gorm:"foreignKey:EventId;constraint:OnDelete:CASCADE;"`
}

type ApplicationResponse struct {
	Id            int    `gorm:"primaryKey"`
	ApplicationId int    `gorm:"not null;uniqueIndex:idx_response_application_question;references:applications(id)"`
	QuestionId    int    `gorm:"not null;uniqueIndex:idx_response_application_question;references:application_questions(id)"`
	Answer        string `gorm:"not null"`

	Question *ApplicationQuestion `gorm:"foreignKey:QuestionId;constraint:OnDelete:CASCADE;"`
}

type ApplicationRepository struct {
	DB *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{DB: db}
}

func (r *ApplicationRepository) GetApplicationById(id int, preloads ...string) (*Application, error) {
	var application Application
	query := r.DB
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	result := query.First(&application, id)
	if result.Error != nil {
		return nil, result.Error
	}
	application.SortResponses()
	return &application, nil
}

// GetReviewableApplications returns all applications in a reviewable
// lifecycle status with their evaluations and consensus rows, the
// working set of the pipeline view.
func (r *ApplicationRepository) GetReviewableApplications() ([]*Application, error) {
	var applications []*Application
	result := r.DB.
		Preload("Evaluations").
		Preload("Consensus").
		Order("submitted_at ASC").
		Find(&applications, "status IN ?", []ApplicationStatus{ApplicationSubmitted, ApplicationUnderReview})
	if result.Error != nil {
		return nil, result.Error
	}
	return applications, nil
}

