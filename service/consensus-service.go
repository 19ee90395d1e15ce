package service

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"ftc/app_error"
	"ftc/metrics"
	"ftc/repository"
	"ftc/scoring"
	"ftc/utils"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type ConsensusService struct {
	db                    *gorm.DB
	consensusRepository   *repository.ConsensusRepository
	evaluationRepository  *repository.EvaluationRepository
	applicationRepository *repository.ApplicationRepository
	competencyRepository  *repository.CompetencyRepository
	decisionWriter        *kafka.Writer
}

// NewConsensusService takes an optional decision writer; a nil writer
// disables decision-event publishing (tests, local development).
func NewConsensusService(db *gorm.DB, decisionWriter *kafka.Writer) *ConsensusService {
	return &ConsensusService{
		db:                    db,
		consensusRepository:   repository.NewConsensusRepository(db),
		evaluationRepository:  repository.NewEvaluationRepository(db),
		applicationRepository: repository.NewApplicationRepository(db),
		competencyRepository:  repository.NewCompetencyRepository(db),
		decisionWriter:        decisionWriter,
	}
}

// ConsensusData is the read-only assembly a decider works from. No
// aggregation happens here; weighting the completed evaluations into a
// final decision is the decider's judgment call.
type ConsensusData struct {
	Application *repository.Application
	Evaluations []*repository.ApplicationEvaluation
	// Competencies holds each reviewer's full competency profile,
	// keyed by reviewer id.
	Competencies map[int][]*repository.ReviewerCompetency
	Consensus    *repository.ReviewConsensus
}

func (s *ConsensusService) GetConsensusData(applicationId int) (*ConsensusData, error) {
	application, err := s.applicationRepository.GetApplicationById(applicationId, "User", "Responses.Question")
	if err != nil {
		return nil, app_error.NotFound("application with id %d not found", applicationId)
	}
	evaluations, err := s.evaluationRepository.GetCompletedEvaluations(applicationId)
	if err != nil {
		return nil, err
	}
	reviewerIds := utils.Uniques(utils.Map(evaluations, func(evaluation *repository.ApplicationEvaluation) int {
		return evaluation.ReviewerId
	}))
	competencies, err := s.competencyRepository.GetCompetenciesForReviewers(reviewerIds)
	if err != nil {
		return nil, err
	}
	consensus, err := s.consensusRepository.GetConsensus(applicationId)
	if err != nil {
		return nil, err
	}
	return &ConsensusData{
		Application:  application,
		Evaluations:  evaluations,
		Competencies: competencies,
		Consensus:    consensus,
	}, nil
}

type ConsensusUpdate struct {
	FinalDecision   *repository.FinalDecision
	ConsensusScore  *float64
	DiscussionNotes *string
}

var finalDecisions = []repository.FinalDecision{
	repository.DecisionAccept,
	repository.DecisionReject,
	repository.DecisionWaitlist,
}

// UpdateConsensus upserts the per-application consensus row. A
// decision-bearing call stamps decided_at and decided_by in the same
// write; repeating the same decision refreshes the stamp, which reads
// as "decision reconfirmed now". Notes-only saves never touch either.
func (s *ConsensusService) UpdateConsensus(decider *repository.User, applicationId int, update *ConsensusUpdate) (*repository.ReviewConsensus, error) {
	if update.FinalDecision != nil && !utils.Contains(finalDecisions, *update.FinalDecision) {
		return nil, app_error.BadRequest("unknown final decision %s", *update.FinalDecision)
	}
	if _, err := s.applicationRepository.GetApplicationById(applicationId); err != nil {
		return nil, app_error.NotFound("application with id %d not found", applicationId)
	}

	consensus, err := s.consensusRepository.GetConsensus(applicationId)
	if err != nil {
		return nil, err
	}
	if consensus == nil {
		consensus = &repository.ReviewConsensus{ApplicationId: applicationId}
	}
	if update.ConsensusScore != nil {
		consensus.ConsensusScore = update.ConsensusScore
	}
	if update.DiscussionNotes != nil {
		consensus.DiscussionNotes = update.DiscussionNotes
	}
	if update.FinalDecision != nil {
		now := time.Now()
		consensus.FinalDecision = update.FinalDecision
		consensus.DecidedAt = &now
		consensus.DecidedById = &decider.Id
	}

	consensus, err = s.consensusRepository.SaveConsensus(consensus)
	if err != nil {
		return nil, err
	}
	if update.FinalDecision != nil {
		metrics.DecisionCounter.WithLabelValues(string(*update.FinalDecision)).Inc()
		s.publishDecision(consensus, decider)
	}
	return consensus, nil
}

type decisionEvent struct {
	ApplicationId int                      `json:"application_id"`
	FinalDecision repository.FinalDecision `json:"final_decision"`
	DecidedById   int                      `json:"decided_by_id"`
	DecidedAt     time.Time                `json:"decided_at"`
}

// publishDecision emits the decision to the review-decisions topic for
// downstream consumers. Best effort: the decision is already durable,
// so a broker failure is logged and counted but never fails the write.
func (s *ConsensusService) publishDecision(consensus *repository.ReviewConsensus, decider *repository.User) {
	if s.decisionWriter == nil {
		return
	}
	payload, err := json.Marshal(decisionEvent{
		ApplicationId: consensus.ApplicationId,
		FinalDecision: *consensus.FinalDecision,
		DecidedById:   decider.Id,
		DecidedAt:     *consensus.DecidedAt,
	})
	if err != nil {
		return
	}
	err = s.decisionWriter.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(strconv.Itoa(consensus.ApplicationId)),
		Value: payload,
	})
	if err != nil {
		metrics.DecisionPublishErrorCounter.Inc()
		log.Printf("failed to publish decision event for application %d: %v", consensus.ApplicationId, err)
	}
}

// Pipeline buckets every in-flight application into exactly one of the
// three operational states.
type Pipeline struct {
	ApplicationReview []*repository.Application `json:"applicationReview"`
	Consensus         []*repository.Application `json:"consensus"`
	FinalDecision     []*repository.Application `json:"finalDecision"`
}

// GetReviewPipeline classifies all applications in a reviewable
// lifecycle status. With a reviewerId the set is first narrowed to
// applications that reviewer has an evaluation on. Pure read, no
// writes.
func (s *ConsensusService) GetReviewPipeline(reviewerId *int) (*Pipeline, error) {
	applications, err := s.applicationRepository.GetReviewableApplications()
	if err != nil {
		return nil, err
	}
	if reviewerId != nil {
		applications = utils.Filter(applications, func(application *repository.Application) bool {
			return scoring.HasEvaluationBy(application, *reviewerId)
		})
	}
	pipeline := &Pipeline{
		ApplicationReview: make([]*repository.Application, 0),
		Consensus:         make([]*repository.Application, 0),
		FinalDecision:     make([]*repository.Application, 0),
	}
	for _, application := range applications {
		switch scoring.Classify(application) {
		case scoring.BucketFinalDecision:
			pipeline.FinalDecision = append(pipeline.FinalDecision, application)
		case scoring.BucketConsensus:
			pipeline.Consensus = append(pipeline.Consensus, application)
		default:
			pipeline.ApplicationReview = append(pipeline.ApplicationReview, application)
		}
	}
	return pipeline, nil
}
