package repository

import (
	"gorm.io/gorm"
)

type EvaluationCriteria struct {
	Id          int     `gorm:"primaryKey"`
	Name        string  `gorm:"not null"`
	Description *string `gorm:"null"`
	SortOrder   int     `gorm:"not null;default:0"`
	Weight      float64 `gorm:"not null;default:1"`
	IsActive    bool    `gorm:"not null;default:true"`
}

type CriteriaRepository struct {
	DB *gorm.DB
}

func NewCriteriaRepository(db *gorm.DB) *CriteriaRepository {
	return &CriteriaRepository{DB: db}
}

// GetActiveCriteria returns the rubric in display order. Only active
// criteria participate in scoring.
func (r *CriteriaRepository) GetActiveCriteria() ([]*EvaluationCriteria, error) {
	var criteria []*EvaluationCriteria
	result := r.DB.Order("sort_order ASC").Find(&criteria, "is_active = ?", true)
	if result.Error != nil {
		return nil, result.Error
	}
	return criteria, nil
}

func (r *CriteriaRepository) GetAllCriteria() ([]*EvaluationCriteria, error) {
	var criteria []*EvaluationCriteria
	result := r.DB.Order("sort_order ASC").Find(&criteria)
	if result.Error != nil {
		return nil, result.Error
	}
	return criteria, nil
}

func (r *CriteriaRepository) GetCriteriaById(id int) (*EvaluationCriteria, error) {
	var criteria EvaluationCriteria
	result := r.DB.First(&criteria, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &criteria, nil
}

func (r *CriteriaRepository) SaveCriteria(criteria *EvaluationCriteria) (*EvaluationCriteria, error) {
	result := r.DB.Save(criteria)
	if result.Error != nil {
		return nil, result.Error
	}
	return criteria, nil
}
