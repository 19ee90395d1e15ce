package service

import (
	"errors"
	"strings"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/utils"

	"gorm.io/gorm"
)

type AssignmentService struct {
	db                    *gorm.DB
	assignmentRepository  *repository.AssignmentRepository
	applicationRepository *repository.ApplicationRepository
	userRepository        *repository.UserRepository
}

func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{
		db:                    db,
		assignmentRepository:  repository.NewAssignmentRepository(db),
		applicationRepository: repository.NewApplicationRepository(db),
		userRepository:        repository.NewUserRepository(db),
	}
}

type AssignmentCreate struct {
	ApplicationId int
	ReviewerId    int
	Stage         repository.ReviewStage
	Priority      int
	DueDate       *time.Time
	Notes         *string
}

// BulkAssignmentResult reports partial success explicitly; skipping
// already-assigned applications is normal, not an error.
type BulkAssignmentResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// createPair writes the assignment and its paired PENDING evaluation in
// the caller's transaction. An assignment never exists without its
// evaluation.
func createPair(tx *gorm.DB, create *AssignmentCreate, assignedBy *repository.User) (*repository.ReviewerAssignment, error) {
	assignment := &repository.ReviewerAssignment{
		ApplicationId: create.ApplicationId,
		ReviewerId:    create.ReviewerId,
		Stage:         create.Stage,
		Priority:      create.Priority,
		DueDate:       create.DueDate,
		Notes:         create.Notes,
		AssignedById:  assignedBy.Id,
		AssignedAt:    time.Now(),
	}
	if err := tx.Create(assignment).Error; err != nil {
		return nil, err
	}
	evaluation := &repository.ApplicationEvaluation{
		ApplicationId: create.ApplicationId,
		ReviewerId:    create.ReviewerId,
		Stage:         create.Stage,
		Status:        repository.EvaluationPending,
	}
	if err := tx.Create(evaluation).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

// isDuplicateKey recognizes the store's uniqueness rejection when two
// writers race on the same (application, reviewer, stage) triple.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

func (s *AssignmentService) CreateAssignment(assignedBy *repository.User, create *AssignmentCreate) (*repository.ReviewerAssignment, error) {
	if _, err := s.applicationRepository.GetApplicationById(create.ApplicationId); err != nil {
		return nil, app_error.NotFound("application with id %d not found", create.ApplicationId)
	}
	if _, err := s.userRepository.GetUserById(create.ReviewerId); err != nil {
		return nil, app_error.NotFound("reviewer with id %d not found", create.ReviewerId)
	}

	var assignment *repository.ReviewerAssignment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		assignment, err = createPair(tx, create, assignedBy)
		return err
	})
	if isDuplicateKey(err) {
		return nil, app_error.Conflict("reviewer %d is already assigned to application %d for stage %s", create.ReviewerId, create.ApplicationId, create.Stage)
	}
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// BulkCreateAssignments assigns one reviewer to many applications,
// skipping applications already assigned for (reviewer, stage) instead
// of failing the batch. All creations run in one transaction.
func (s *AssignmentService) BulkCreateAssignments(assignedBy *repository.User, applicationIds []int, create *AssignmentCreate) (*BulkAssignmentResult, error) {
	applicationIds = utils.Uniques(applicationIds)
	if len(applicationIds) == 0 {
		return nil, app_error.BadRequest("no applications requested")
	}

	assignedIds, err := s.assignmentRepository.GetAssignedApplicationIds(applicationIds, create.ReviewerId, create.Stage)
	if err != nil {
		return nil, err
	}
	toCreate := utils.Filter(applicationIds, func(id int) bool {
		return !utils.Contains(assignedIds, id)
	})
	if len(toCreate) == 0 {
		return nil, app_error.Conflict("all requested applications are already assigned to reviewer %d for stage %s", create.ReviewerId, create.Stage)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, applicationId := range toCreate {
			pairCreate := *create
			pairCreate.ApplicationId = applicationId
			if _, err := createPair(tx, &pairCreate, assignedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if isDuplicateKey(err) {
		// a concurrent call created one of the pairs after we computed the skip set
		return nil, app_error.Conflict("reviewer %d was concurrently assigned to one of the requested applications for stage %s", create.ReviewerId, create.Stage)
	}
	if err != nil {
		return nil, err
	}
	return &BulkAssignmentResult{
		Created: len(toCreate),
		Skipped: len(applicationIds) - len(toCreate),
		Total:   len(applicationIds),
	}, nil
}

// SelfAssign lets any authenticated reviewer claim a reviewable
// application they have not already claimed for the stage.
func (s *AssignmentService) SelfAssign(reviewer *repository.User, create *AssignmentCreate) (*repository.ReviewerAssignment, error) {
	application, err := s.applicationRepository.GetApplicationById(create.ApplicationId)
	if err != nil {
		return nil, app_error.NotFound("application with id %d not found", create.ApplicationId)
	}
	if !application.IsReviewable() {
		return nil, app_error.BadRequest("application %d is not open for review (status %s)", application.Id, application.Status)
	}
	if _, err := s.assignmentRepository.GetAssignment(create.ApplicationId, reviewer.Id, create.Stage); err == nil {
		return nil, app_error.Conflict("you are already assigned to application %d for stage %s", create.ApplicationId, create.Stage)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	create.ReviewerId = reviewer.Id
	var assignment *repository.ReviewerAssignment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		assignment, err = createPair(tx, create, reviewer)
		return err
	})
	if isDuplicateKey(err) {
		// lost the race against our own concurrent request
		return nil, app_error.Conflict("you are already assigned to application %d for stage %s", create.ApplicationId, create.Stage)
	}
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) GetAvailableApplications(reviewer *repository.User, eventId int, stage repository.ReviewStage, limit int) ([]*repository.AvailableApplication, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.assignmentRepository.GetAvailableApplications(reviewer.Id, eventId, stage, limit)
}
