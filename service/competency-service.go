package service

import (
	"errors"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/utils"

	"gorm.io/gorm"
)

type CompetencyService struct {
	db                   *gorm.DB
	competencyRepository *repository.CompetencyRepository
	userRepository       *repository.UserRepository
}

func NewCompetencyService(db *gorm.DB) *CompetencyService {
	return &CompetencyService{
		db:                   db,
		competencyRepository: repository.NewCompetencyRepository(db),
		userRepository:       repository.NewUserRepository(db),
	}
}

type CompetencySet struct {
	ReviewerId      int
	Category        repository.CompetencyCategory
	CompetencyLevel int
	BaseWeight      float64
	Notes           *string
}

func validateCompetency(set *CompetencySet) error {
	if !utils.Contains(repository.CompetencyCategories, set.Category) {
		return app_error.BadRequest("unknown competency category %s", set.Category)
	}
	if set.CompetencyLevel < 1 || set.CompetencyLevel > 5 {
		return app_error.BadRequest("competency level must be between 1 and 5")
	}
	if set.BaseWeight < 0.1 || set.BaseWeight > 5.0 {
		return app_error.BadRequest("base weight must be between 0.1 and 5.0")
	}
	return nil
}

func (s *CompetencyService) toModel(set *CompetencySet, assignedBy *repository.User) *repository.ReviewerCompetency {
	return &repository.ReviewerCompetency{
		ReviewerId:      set.ReviewerId,
		Category:        set.Category,
		CompetencyLevel: set.CompetencyLevel,
		BaseWeight:      set.BaseWeight,
		AssignedById:    assignedBy.Id,
		Notes:           set.Notes,
		UpdatedAt:       time.Now(),
	}
}

func (s *CompetencyService) SetCompetency(assignedBy *repository.User, set *CompetencySet) (*repository.ReviewerCompetency, error) {
	if err := validateCompetency(set); err != nil {
		return nil, err
	}
	if _, err := s.userRepository.GetUserById(set.ReviewerId); err != nil {
		return nil, app_error.NotFound("reviewer with id %d not found", set.ReviewerId)
	}
	competency := s.toModel(set, assignedBy)
	if err := s.competencyRepository.UpsertCompetency(competency); err != nil {
		return nil, err
	}
	return competency, nil
}

// BulkSetCompetencies validates all entries first, then upserts them in
// one transaction so a bad entry leaves nothing half-written.
func (s *CompetencyService) BulkSetCompetencies(assignedBy *repository.User, sets []*CompetencySet) ([]*repository.ReviewerCompetency, error) {
	if len(sets) == 0 {
		return nil, app_error.BadRequest("no competencies to set")
	}
	for _, set := range sets {
		if err := validateCompetency(set); err != nil {
			return nil, err
		}
		if _, err := s.userRepository.GetUserById(set.ReviewerId); err != nil {
			return nil, app_error.NotFound("reviewer with id %d not found", set.ReviewerId)
		}
	}
	competencies := make([]*repository.ReviewerCompetency, 0, len(sets))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txRepository := repository.NewCompetencyRepository(tx)
		for _, set := range sets {
			competency := s.toModel(set, assignedBy)
			if err := txRepository.UpsertCompetency(competency); err != nil {
				return err
			}
			competencies = append(competencies, competency)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return competencies, nil
}

func (s *CompetencyService) RemoveCompetency(reviewerId int, category repository.CompetencyCategory) error {
	if !utils.Contains(repository.CompetencyCategories, category) {
		return app_error.BadRequest("unknown competency category %s", category)
	}
	err := s.competencyRepository.DeleteCompetency(reviewerId, category)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return app_error.NotFound("no %s competency for reviewer %d", category, reviewerId)
	}
	return err
}

func (s *CompetencyService) GetCompetenciesForReviewer(reviewerId int) ([]*repository.ReviewerCompetency, error) {
	return s.competencyRepository.GetCompetenciesForReviewer(reviewerId)
}
