package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompetencyCategory string

const (
	CategoryTechnical       CompetencyCategory = "TECHNICAL"
	CategoryProject         CompetencyCategory = "PROJECT"
	CategoryCommunityFit    CompetencyCategory = "COMMUNITY_FIT"
	CategoryVideo           CompetencyCategory = "VIDEO"
	CategoryEntrepreneurial CompetencyCategory = "ENTREPRENEURIAL"
	CategoryOverall         CompetencyCategory = "OVERALL"
)

var CompetencyCategories = []CompetencyCategory{
	CategoryTechnical,
	CategoryProject,
	CategoryCommunityFit,
	CategoryVideo,
	CategoryEntrepreneurial,
	CategoryOverall,
}

// ReviewerCompetency is a read-side signal for consensus weighting. It
// is never enforced as a gate on who may review.
type ReviewerCompetency struct {
	Id              int                `gorm:"primaryKey"`
	ReviewerId      int                `gorm:"not null;uniqueIndex:idx_competency_reviewer_category;references:users(id)"`
	Category        CompetencyCategory `gorm:"not null;type:ftc.competency_category;uniqueIndex:idx_competency_reviewer_category"`
	CompetencyLevel int                `gorm:"not null"`
	BaseWeight      float64            `gorm:"not null;default:1"`
	AssignedById    int                `gorm:"not null;references:users(id)"`
	Notes           *string            `gorm:"null"`
	UpdatedAt       time.Time

	Reviewer *User `gorm:"foreignKey:ReviewerId;constraint:OnDelete:CASCADE;"`
}

type CompetencyRepository struct {
	DB *gorm.DB
}

func NewCompetencyRepository(db *gorm.DB) *CompetencyRepository {
	return &CompetencyRepository{DB: db}
}

func (r *CompetencyRepository) UpsertCompetency(competency *ReviewerCompetency) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reviewer_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"competency_level", "base_weight", "assigned_by_id", "notes", "updated_at"}),
	}).Create(competency).Error
}

func (r *CompetencyRepository) GetCompetenciesForReviewer(reviewerId int) ([]*ReviewerCompetency, error) {
	var competencies []*ReviewerCompetency
	result := r.DB.Order("category ASC").Find(&competencies, "reviewer_id = ?", reviewerId)
	if result.Error != nil {
		return nil, result.Error
	}
	return competencies, nil
}

// GetCompetenciesForReviewers returns the full competency profiles of
// the given reviewers, keyed by reviewer id.
func (r *CompetencyRepository) GetCompetenciesForReviewers(reviewerIds []int) (map[int][]*ReviewerCompetency, error) {
	var competencies []*ReviewerCompetency
	result := r.DB.Find(&competencies, "reviewer_id IN ?", reviewerIds)
	if result.Error != nil {
		return nil, result.Error
	}
	profiles := make(map[int][]*ReviewerCompetency)
	for _, competency := range competencies {
		profiles[competency.ReviewerId] = append(profiles[competency.ReviewerId], competency)
	}
	return profiles, nil
}

func (r *CompetencyRepository) DeleteCompetency(reviewerId int, category CompetencyCategory) error {
	result := r.DB.Delete(&ReviewerCompetency{}, "reviewer_id = ? AND category = ?", reviewerId, category)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
