package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"ftc/app_error"
	"ftc/auth"
	"ftc/client"
	"ftc/config"
	"ftc/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.Run("postgres", "17.2-alpine", []string{"POSTGRES_USER=postgres", "POSTGRES_PASSWORD=postgres", "DATABASE_NAME=postgres"})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}
	resource.Expire(600) // Tell docker to hard kill the container in 10 minutes
	sqlInfo := fmt.Sprintf(
		"host=localhost port=%s user=postgres password=postgres dbname=postgres sslmode=disable search_path=ftc",
		resource.GetPort("5432/tcp"))

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	if err := pool.Retry(func() error {
		var err error
		db, err = gorm.Open(postgres.Open(sqlInfo), &gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				TablePrefix:   "ftc.",
				SingularTable: false,
			},
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return err
		}
		_, err = config.Migrate(db)
		return err
	}); err != nil {
		log.Fatalf("Could not connect to database: %s", err)
	}

	defer func() {
		if err := pool.Purge(resource); err != nil {
			log.Fatalf("Could not purge resource: %s", err)
		}
	}()
	m.Run()
}

func TearDown() {
	db.Exec("DELETE FROM ftc.evaluation_comments")
	db.Exec("DELETE FROM ftc.evaluation_scores")
	db.Exec("DELETE FROM ftc.application_evaluations")
	db.Exec("DELETE FROM ftc.reviewer_assignments")
	db.Exec("DELETE FROM ftc.review_consensus")
	db.Exec("DELETE FROM ftc.reviewer_competencies")
	db.Exec("DELETE FROM ftc.application_responses")
	db.Exec("DELETE FROM ftc.application_questions")
	db.Exec("DELETE FROM ftc.applications")
	db.Exec("DELETE FROM ftc.evaluation_criterias")
	db.Exec("DELETE FROM ftc.events")
	db.Exec("DELETE FROM ftc.users")
}

type fixture struct {
	Admin        *repository.User
	Reviewer     *repository.User
	Applicant    *repository.User
	Event        *repository.Event
	Applications []*repository.Application
	Criteria     []*repository.EvaluationCriteria
}

// SetUp seeds an event with three submitted applications, two active
// weighted criteria and one inactive one.
func SetUp() *fixture {
	f := &fixture{
		Admin:     &repository.User{Name: "admin", Email: "admin@example.com", Permissions: []string{string(repository.PermissionAdmin)}},
		Reviewer:  &repository.User{Name: "reviewer", Email: "reviewer@example.com", Permissions: []string{string(repository.PermissionStaff)}},
		Applicant: &repository.User{Name: "applicant", Email: "applicant@example.com", Permissions: []string{}},
		Event:     &repository.Event{Name: "event1"},
	}
	for _, record := range []any{f.Admin, f.Reviewer, f.Applicant, f.Event} {
		if err := db.Create(record).Error; err != nil {
			log.Fatalf("Error creating fixture: %v", err)
		}
	}
	question := &repository.ApplicationQuestion{
		EventId:     f.Event.Id,
		QuestionKey: "motivation",
		Prompt:      "Why do you want to attend?",
		SortOrder:   1,
	}
	if err := db.Create(question).Error; err != nil {
		log.Fatalf("Error creating question: %v", err)
	}
	now := time.Now()
	for i := 0; i < 3; i++ {
		application := &repository.Application{
			EventId:     f.Event.Id,
			UserId:      f.Applicant.Id,
			Status:      repository.ApplicationSubmitted,
			SubmittedAt: &now,
			Responses: []*repository.ApplicationResponse{
				{QuestionId: question.Id, Answer: fmt.Sprintf("answer %d", i)},
			},
		}
		if err := db.Create(application).Error; err != nil {
			log.Fatalf("Error creating application: %v", err)
		}
		f.Applications = append(f.Applications, application)
	}
	f.Criteria = []*repository.EvaluationCriteria{
		{Name: "technical depth", Weight: 2, SortOrder: 1, IsActive: true},
		{Name: "community fit", Weight: 3, SortOrder: 2, IsActive: true},
		{Name: "retired", Weight: 1, SortOrder: 3, IsActive: false},
	}
	for _, criteria := range f.Criteria {
		if err := db.Create(criteria).Error; err != nil {
			log.Fatalf("Error creating criteria: %v", err)
		}
	}
	return f
}

func TestAssignmentCreatesPendingEvaluation(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)

	assignment, err := assignmentService.CreateAssignment(f.Admin, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		ReviewerId:    f.Reviewer.Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)
	assert.Equal(t, f.Admin.Id, assignment.AssignedById)

	evaluation := &repository.ApplicationEvaluation{}
	err = db.First(evaluation, "application_id = ? AND reviewer_id = ? AND stage = ?",
		f.Applications[0].Id, f.Reviewer.Id, repository.StageScreening).Error
	assert.Nil(t, err)
	assert.Equal(t, repository.EvaluationPending, evaluation.Status)

	_, err = assignmentService.CreateAssignment(f.Admin, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		ReviewerId:    f.Reviewer.Id,
		Stage:         repository.StageScreening,
	})
	assert.Equal(t, 409, app_error.HTTPStatus(err))
}

func TestBulkAssignmentSkipsExisting(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)

	_, err := assignmentService.CreateAssignment(f.Admin, &AssignmentCreate{
		ApplicationId: f.Applications[1].Id,
		ReviewerId:    f.Reviewer.Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)

	applicationIds := []int{f.Applications[0].Id, f.Applications[1].Id, f.Applications[2].Id}
	result, err := assignmentService.BulkCreateAssignments(f.Admin, applicationIds, &AssignmentCreate{
		ReviewerId: f.Reviewer.Id,
		Stage:      repository.StageScreening,
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Total)

	var evaluationCount int64
	db.Model(&repository.ApplicationEvaluation{}).Where("reviewer_id = ?", f.Reviewer.Id).Count(&evaluationCount)
	assert.Equal(t, int64(3), evaluationCount)

	// a second identical bulk call has nothing left to create
	_, err = assignmentService.BulkCreateAssignments(f.Admin, applicationIds, &AssignmentCreate{
		ReviewerId: f.Reviewer.Id,
		Stage:      repository.StageScreening,
	})
	assert.Equal(t, 409, app_error.HTTPStatus(err))
}

func TestBulkAssignmentMapsUniquenessRaceToConflict(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)

	// an evaluation already exists for the triple without its assignment,
	// so the skip set misses it and the insert hits the unique index
	evaluation := &repository.ApplicationEvaluation{
		ApplicationId: f.Applications[2].Id,
		ReviewerId:    f.Reviewer.Id,
		Stage:         repository.StageScreening,
	}
	assert.Nil(t, db.Create(evaluation).Error)

	applicationIds := []int{f.Applications[0].Id, f.Applications[1].Id, f.Applications[2].Id}
	_, err := assignmentService.BulkCreateAssignments(f.Admin, applicationIds, &AssignmentCreate{
		ReviewerId: f.Reviewer.Id,
		Stage:      repository.StageScreening,
	})
	assert.Equal(t, 409, app_error.HTTPStatus(err))

	// the whole batch rolled back
	var assignmentCount int64
	db.Model(&repository.ReviewerAssignment{}).Count(&assignmentCount)
	assert.Equal(t, int64(0), assignmentCount)
}

func TestIssuedTokenResolvesUser(t *testing.T) {
	f := SetUp()
	defer TearDown()
	userService := NewUserService(db)

	tokenString, err := auth.CreateToken(f.Reviewer)
	assert.Nil(t, err)

	user, err := userService.GetUserFromToken(tokenString)
	assert.Nil(t, err)
	assert.Equal(t, f.Reviewer.Id, user.Id)
	assert.True(t, user.HasPermission(repository.PermissionStaff))

	_, err = userService.GetUserFromToken("not-a-token")
	assert.NotNil(t, err)
}

func TestSelfAssignRejectsNonReviewable(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)

	draft := &repository.Application{
		EventId: f.Event.Id,
		UserId:  f.Applicant.Id,
		Status:  repository.ApplicationDraft,
	}
	assert.Nil(t, db.Create(draft).Error)

	_, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: draft.Id,
		Stage:         repository.StageScreening,
	})
	assert.Equal(t, 400, app_error.HTTPStatus(err))

	assignment, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)
	assert.Equal(t, f.Reviewer.Id, assignment.ReviewerId)
	assert.Equal(t, f.Reviewer.Id, assignment.AssignedById)

	_, err = assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Equal(t, 409, app_error.HTTPStatus(err))
}

func TestAvailableApplicationsExcludeOwnAssignments(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)

	_, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)

	available, err := assignmentService.GetAvailableApplications(f.Reviewer, 0, repository.StageScreening, 20)
	assert.Nil(t, err)
	assert.Len(t, available, 2)
	for _, row := range available {
		assert.NotEqual(t, f.Applications[0].Id, row.ApplicationId)
	}
}

func TestUpsertScoreRecomputesOverall(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)
	evaluationService := NewEvaluationService(db)

	_, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)
	evaluation, err := evaluationService.GetEvaluationFor(f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Nil(t, err)

	evaluation, err = evaluationService.UpsertScore(f.Reviewer, evaluation.Id, f.Criteria[0].Id, 8, nil)
	assert.Nil(t, err)
	assert.NotNil(t, evaluation.OverallScore)
	assert.InDelta(t, 8.0, *evaluation.OverallScore, 1e-9)

	// weights 2 and 3: (8*2 + 6*3) / 5
	evaluation, err = evaluationService.UpsertScore(f.Reviewer, evaluation.Id, f.Criteria[1].Id, 6, nil)
	assert.Nil(t, err)
	assert.InDelta(t, 6.8, *evaluation.OverallScore, 1e-9)

	// rescoring the same criteria replaces the value instead of adding a row
	evaluation, err = evaluationService.UpsertScore(f.Reviewer, evaluation.Id, f.Criteria[0].Id, 3, nil)
	assert.Nil(t, err)
	assert.Len(t, evaluation.Scores, 2)
	assert.InDelta(t, 4.8, *evaluation.OverallScore, 1e-9)

	_, err = evaluationService.UpsertScore(f.Reviewer, evaluation.Id, f.Criteria[2].Id, 5, nil)
	assert.Equal(t, 400, app_error.HTTPStatus(err))

	_, err = evaluationService.UpsertScore(f.Admin, evaluation.Id, f.Criteria[0].Id, 5, nil)
	assert.Equal(t, 403, app_error.HTTPStatus(err))
}

func TestCompletingEvaluationStampsCompletedAt(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)
	evaluationService := NewEvaluationService(db)

	_, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)
	evaluation, err := evaluationService.GetEvaluationFor(f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Nil(t, err)
	assert.Nil(t, evaluation.CompletedAt)

	completed := repository.EvaluationCompleted
	recommendation := repository.RecommendAccept
	evaluation, err = evaluationService.UpdateEvaluation(f.Reviewer, evaluation.Id, &EvaluationUpdate{
		Status:         &completed,
		Recommendation: &recommendation,
	})
	assert.Nil(t, err)
	assert.Equal(t, repository.EvaluationCompleted, evaluation.Status)
	assert.NotNil(t, evaluation.CompletedAt)
	stampedAt := *evaluation.CompletedAt

	// reopening the evaluation keeps the original completion stamp
	inProgress := repository.EvaluationInProgress
	evaluation, err = evaluationService.UpdateEvaluation(f.Reviewer, evaluation.Id, &EvaluationUpdate{
		Status: &inProgress,
	})
	assert.Nil(t, err)
	assert.Equal(t, repository.EvaluationInProgress, evaluation.Status)
	assert.NotNil(t, evaluation.CompletedAt)
	assert.Equal(t, stampedAt.Unix(), evaluation.CompletedAt.Unix())
}

func TestConsensusDecisionStampsDecider(t *testing.T) {
	f := SetUp()
	defer TearDown()
	consensusService := NewConsensusService(db, nil)

	notes := "strong technical profile"
	consensus, err := consensusService.UpdateConsensus(f.Admin, f.Applications[0].Id, &ConsensusUpdate{
		DiscussionNotes: &notes,
	})
	assert.Nil(t, err)
	assert.Nil(t, consensus.FinalDecision)
	assert.Nil(t, consensus.DecidedAt)

	decision := repository.DecisionAccept
	consensus, err = consensusService.UpdateConsensus(f.Admin, f.Applications[0].Id, &ConsensusUpdate{
		FinalDecision: &decision,
	})
	assert.Nil(t, err)
	assert.Equal(t, repository.DecisionAccept, *consensus.FinalDecision)
	assert.NotNil(t, consensus.DecidedAt)
	assert.Equal(t, f.Admin.Id, *consensus.DecidedById)
	assert.Equal(t, notes, *consensus.DiscussionNotes)
	firstDecidedAt := *consensus.DecidedAt

	// reconfirming the decision refreshes the stamp
	time.Sleep(10 * time.Millisecond)
	consensus, err = consensusService.UpdateConsensus(f.Admin, f.Applications[0].Id, &ConsensusUpdate{
		FinalDecision: &decision,
	})
	assert.Nil(t, err)
	assert.True(t, consensus.DecidedAt.After(firstDecidedAt))

	bogus := repository.FinalDecision("MAYBE")
	_, err = consensusService.UpdateConsensus(f.Admin, f.Applications[0].Id, &ConsensusUpdate{
		FinalDecision: &bogus,
	})
	assert.Equal(t, 400, app_error.HTTPStatus(err))
}

func TestPipelineBuckets(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)
	evaluationService := NewEvaluationService(db)
	consensusService := NewConsensusService(db, nil)

	// application 0: completed evaluation, no decision yet
	_, err := assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)
	evaluation, err := evaluationService.GetEvaluationFor(f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Nil(t, err)
	completed := repository.EvaluationCompleted
	_, err = evaluationService.UpdateEvaluation(f.Reviewer, evaluation.Id, &EvaluationUpdate{Status: &completed})
	assert.Nil(t, err)

	// application 1: decided
	decision := repository.DecisionReject
	_, err = consensusService.UpdateConsensus(f.Admin, f.Applications[1].Id, &ConsensusUpdate{FinalDecision: &decision})
	assert.Nil(t, err)

	pipeline, err := consensusService.GetReviewPipeline(nil)
	assert.Nil(t, err)
	assert.Len(t, pipeline.Consensus, 1)
	assert.Equal(t, f.Applications[0].Id, pipeline.Consensus[0].Id)
	assert.Len(t, pipeline.FinalDecision, 1)
	assert.Equal(t, f.Applications[1].Id, pipeline.FinalDecision[0].Id)
	assert.Len(t, pipeline.ApplicationReview, 1)
	assert.Equal(t, f.Applications[2].Id, pipeline.ApplicationReview[0].Id)

	// filtered to the reviewer, only their evaluated application remains
	pipeline, err = consensusService.GetReviewPipeline(&f.Reviewer.Id)
	assert.Nil(t, err)
	assert.Len(t, pipeline.Consensus, 1)
	assert.Len(t, pipeline.ApplicationReview, 0)
}

func TestCompetencyBulkSetIsAtomic(t *testing.T) {
	f := SetUp()
	defer TearDown()
	competencyService := NewCompetencyService(db)

	sets := []*CompetencySet{
		{ReviewerId: f.Reviewer.Id, Category: repository.CategoryTechnical, CompetencyLevel: 4, BaseWeight: 1.5},
		{ReviewerId: f.Reviewer.Id, Category: repository.CategoryTechnical, CompetencyLevel: 9, BaseWeight: 1},
	}
	_, err := competencyService.BulkSetCompetencies(f.Admin, sets)
	assert.Equal(t, 400, app_error.HTTPStatus(err))

	var count int64
	db.Model(&repository.ReviewerCompetency{}).Count(&count)
	assert.Equal(t, int64(0), count)

	sets[1].CompetencyLevel = 3
	competencies, err := competencyService.BulkSetCompetencies(f.Admin, sets)
	assert.Nil(t, err)
	assert.Len(t, competencies, 2)

	// the second set for the same category overwrote the first
	stored, err := competencyService.GetCompetenciesForReviewer(f.Reviewer.Id)
	assert.Nil(t, err)
	assert.Len(t, stored, 1)
	assert.Equal(t, 3, stored[0].CompetencyLevel)
}

type fakeScorer struct {
	result      *client.ScoreSet
	err         error
	sawDeadline bool
}

func (s *fakeScorer) ScoreApplication(ctx context.Context, application *repository.Application, criteria []*repository.EvaluationCriteria, stage repository.ReviewStage) (*client.ScoreSet, error) {
	_, s.sawDeadline = ctx.Deadline()
	return s.result, s.err
}

func TestAutoScoreIsAdvisoryOnly(t *testing.T) {
	f := SetUp()
	defer TearDown()
	assignmentService := NewAssignmentService(db)
	evaluationService := NewEvaluationService(db)
	scorer := &fakeScorer{result: &client.ScoreSet{
		Scores:         []client.CriterionScore{{CriteriaId: f.Criteria[0].Id, Score: 7, Reasoning: "solid"}},
		Recommendation: "ACCEPT",
		Confidence:     4,
	}}
	autoScoreService := NewAutoScoreService(db, scorer)

	// no evaluation of their own yet
	_, err := autoScoreService.AutoScore(context.Background(), f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Equal(t, 404, app_error.HTTPStatus(err))

	_, err = assignmentService.SelfAssign(f.Reviewer, &AssignmentCreate{
		ApplicationId: f.Applications[0].Id,
		Stage:         repository.StageScreening,
	})
	assert.Nil(t, err)

	scoreSet, err := autoScoreService.AutoScore(context.Background(), f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Nil(t, err)
	assert.Len(t, scoreSet.Scores, 1)
	// the provider call is deadline-bounded even on an unbounded caller context
	assert.True(t, scorer.sawDeadline)

	// nothing was written to the evaluation
	evaluation, err := evaluationService.GetEvaluationFor(f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Nil(t, err)
	assert.Nil(t, evaluation.OverallScore)
	var scoreCount int64
	db.Model(&repository.EvaluationScore{}).Count(&scoreCount)
	assert.Equal(t, int64(0), scoreCount)

	scorer.result = nil
	scorer.err = errors.New("model overloaded")
	_, err = autoScoreService.AutoScore(context.Background(), f.Reviewer, f.Applications[0].Id, repository.StageScreening)
	assert.Equal(t, 502, app_error.HTTPStatus(err))
}
