package service

import (
	"ftc/app_error"
	"ftc/repository"

	"gorm.io/gorm"
)

type CriteriaService struct {
	criteriaRepository *repository.CriteriaRepository
}

func NewCriteriaService(db *gorm.DB) *CriteriaService {
	return &CriteriaService{
		criteriaRepository: repository.NewCriteriaRepository(db),
	}
}

func (s *CriteriaService) GetActiveCriteria() ([]*repository.EvaluationCriteria, error) {
	return s.criteriaRepository.GetActiveCriteria()
}

func (s *CriteriaService) GetAllCriteria() ([]*repository.EvaluationCriteria, error) {
	return s.criteriaRepository.GetAllCriteria()
}

func (s *CriteriaService) CreateCriteria(criteria *repository.EvaluationCriteria) (*repository.EvaluationCriteria, error) {
	if criteria.Weight <= 0 {
		return nil, app_error.BadRequest("criteria weight must be positive")
	}
	criteria.Id = 0
	criteria.IsActive = true
	return s.criteriaRepository.SaveCriteria(criteria)
}

type CriteriaUpdate struct {
	Name        *string
	Description *string
	SortOrder   *int
	Weight      *float64
	IsActive    *bool
}

// UpdateCriteria mutates the catalog entry. Weight changes affect only
// future recomputations; stored per-criterion scores are untouched.
// Criteria are never hard-deleted, deactivation is the only removal.
func (s *CriteriaService) UpdateCriteria(id int, update *CriteriaUpdate) (*repository.EvaluationCriteria, error) {
	criteria, err := s.criteriaRepository.GetCriteriaById(id)
	if err != nil {
		return nil, app_error.NotFound("criteria with id %d not found", id)
	}
	if update.Weight != nil {
		if *update.Weight <= 0 {
			return nil, app_error.BadRequest("criteria weight must be positive")
		}
		criteria.Weight = *update.Weight
	}
	if update.Name != nil {
		criteria.Name = *update.Name
	}
	if update.Description != nil {
		criteria.Description = update.Description
	}
	if update.SortOrder != nil {
		criteria.SortOrder = *update.SortOrder
	}
	if update.IsActive != nil {
		criteria.IsActive = *update.IsActive
	}
	return s.criteriaRepository.SaveCriteria(criteria)
}
