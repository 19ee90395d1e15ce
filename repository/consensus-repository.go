package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type FinalDecision string

const (
	DecisionAccept   FinalDecision = "ACCEPT"
	DecisionReject   FinalDecision = "REJECT"
	DecisionWaitlist FinalDecision = "WAITLIST"
)

// ReviewConsensus holds the single final decision for an application.
// A row may exist before any decision is made (notes-only saves);
// decided_at/decided_by are written atomically with final_decision.
type ReviewConsensus struct {
	Id              int            `gorm:"primaryKey"`
	ApplicationId   int            `gorm:"not null;uniqueIndex;references:applications(id)"`
	FinalDecision   *FinalDecision `gorm:"null;type:ftc.final_decision"`
	ConsensusScore  *float64       `gorm:"null"`
	DiscussionNotes *string        `gorm:"null"`
	DecidedById     *int           `gorm:"null;references:users(id)"`
	DecidedAt       *time.Time     `gorm:"null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Application *Application `gorm:"foreignKey:ApplicationId;constraint:OnDelete:CASCADE;"`
	DecidedBy   *User        `gorm:"foreignKey:DecidedById;constraint:OnDelete:CASCADE;"`
}

type ConsensusRepository struct {
	DB *gorm.DB
}

func NewConsensusRepository(db *gorm.DB) *ConsensusRepository {
	return &ConsensusRepository{DB: db}
}

// GetConsensus returns the consensus row for the application, or nil
// if none exists yet.
func (r *ConsensusRepository) GetConsensus(applicationId int) (*ReviewConsensus, error) {
	var consensus ReviewConsensus
	result := r.DB.Preload("DecidedBy").First(&consensus, "application_id = ?", applicationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &consensus, nil
}

func (r *ConsensusRepository) SaveConsensus(consensus *ReviewConsensus) (*ReviewConsensus, error) {
	result := r.DB.Save(consensus)
	if result.Error != nil {
		return nil, result.Error
	}
	return consensus, nil
}
