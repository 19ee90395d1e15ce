package controller

import (
	"strconv"
	"time"

	"ftc/app_error"
	"ftc/client"
	"ftc/repository"
	"ftc/service"
	"ftc/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type EvaluationController struct {
	evaluationService *service.EvaluationService
	autoScoreService  *service.AutoScoreService
	userService       *service.UserService
}

func NewEvaluationController(db *gorm.DB, scorer client.ScoringProvider) *EvaluationController {
	return &EvaluationController{
		evaluationService: service.NewEvaluationService(db),
		autoScoreService:  service.NewAutoScoreService(db, scorer),
		userService:       service.NewUserService(db),
	}
}

func setupEvaluationController(db *gorm.DB, scorer client.ScoringProvider) []RouteInfo {
	e := NewEvaluationController(db, scorer)
	routes := []RouteInfo{
		{Method: "GET", Path: "/review/evaluations/:id", HandlerFunc: e.getEvaluationHandler(), Authenticated: true},
		{Method: "PATCH", Path: "/review/evaluations/:id", HandlerFunc: e.updateEvaluationHandler(), Authenticated: true},
		{Method: "PUT", Path: "/review/evaluations/:id/scores", HandlerFunc: e.upsertScoreHandler(), Authenticated: true},
		{Method: "POST", Path: "/review/evaluations/:id/comments", HandlerFunc: e.addCommentHandler(), Authenticated: true},
		{Method: "POST", Path: "/review/applications/:id/auto-score", HandlerFunc: e.autoScoreHandler(), Authenticated: true},
	}
	return routes
}

func evaluationId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}

// @id GetEvaluation
// @Description Fetches an evaluation with its scores and comments
// @Security BearerAuth
// @Tags evaluations
// @Produce json
// @Param id path int true "Evaluation Id"
// @Success 200 {object} Evaluation
// @Router /review/evaluations/{id} [get]
func (e *EvaluationController) getEvaluationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := evaluationId(c)
		if !ok {
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		evaluation, err := e.evaluationService.GetEvaluation(user, id)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toEvaluationResponse(evaluation))
	}
}

// @id UpdateEvaluation
// @Description Updates evaluation status, recommendation and review metadata
// @Security BearerAuth
// @Tags evaluations
// @Accept json
// @Produce json
// @Param id path int true "Evaluation Id"
// @Param body body EvaluationUpdate true "Fields to update"
// @Success 200 {object} Evaluation
// @Router /review/evaluations/{id} [patch]
func (e *EvaluationController) updateEvaluationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := evaluationId(c)
		if !ok {
			return
		}
		var update EvaluationUpdate
		if err := c.BindJSON(&update); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		evaluation, err := e.evaluationService.UpdateEvaluation(user, id, update.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toEvaluationResponse(evaluation))
	}
}

// @id UpsertScore
// @Description Writes one per-criterion score and recomputes the overall score
// @Security BearerAuth
// @Tags evaluations
// @Accept json
// @Produce json
// @Param id path int true "Evaluation Id"
// @Param body body ScoreUpsert true "Score to write"
// @Success 200 {object} Evaluation
// @Router /review/evaluations/{id}/scores [put]
func (e *EvaluationController) upsertScoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := evaluationId(c)
		if !ok {
			return
		}
		var scoreUpsert ScoreUpsert
		if err := c.BindJSON(&scoreUpsert); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		evaluation, err := e.evaluationService.UpsertScore(user, id, scoreUpsert.CriteriaId, scoreUpsert.Score, scoreUpsert.Reasoning)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toEvaluationResponse(evaluation))
	}
}

// @id AddEvaluationComment
// @Description Appends a comment to an evaluation, optionally tied to a question
// @Security BearerAuth
// @Tags evaluations
// @Accept json
// @Produce json
// @Param id path int true "Evaluation Id"
// @Param body body CommentCreate true "Comment to append"
// @Success 201 {object} Comment
// @Router /review/evaluations/{id}/comments [post]
func (e *EvaluationController) addCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := evaluationId(c)
		if !ok {
			return
		}
		var commentCreate CommentCreate
		if err := c.BindJSON(&commentCreate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		comment, err := e.evaluationService.AddComment(user, id, commentCreate.QuestionKey, commentCreate.Comment, commentCreate.IsPrivate)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(201, toCommentResponse(comment))
	}
}

// @id AutoScoreApplication
// @Description Requests an advisory AI score set for the caller's evaluation. Nothing is persisted.
// @Security BearerAuth
// @Tags evaluations
// @Produce json
// @Param id path int true "Application Id"
// @Param stage query string true "Review stage"
// @Success 200 {object} client.ScoreSet
// @Router /review/applications/{id}/auto-score [post]
func (e *EvaluationController) autoScoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := evaluationId(c)
		if !ok {
			return
		}
		stage := repository.ReviewStage(c.Query("stage"))
		if stage == "" {
			c.JSON(400, gin.H{"error": "stage is required"})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		// bounded by the request context so a slow model call is
		// cancelled with the request
		scoreSet, err := e.autoScoreService.AutoScore(c.Request.Context(), user, id, stage)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, scoreSet)
	}
}

type EvaluationUpdate struct {
	Status           *repository.EvaluationStatus `json:"status"`
	Recommendation   *repository.Recommendation   `json:"recommendation"`
	Confidence       *int                         `json:"confidence"`
	Comments         *string                      `json:"comments"`
	TimeSpentMinutes *int                         `json:"time_spent_minutes"`
	VideoWatched     *bool                        `json:"video_watched"`
	VideoTimestamps  *string                      `json:"video_timestamps"`
	VideoQuality     *int                         `json:"video_quality"`
}

func (e *EvaluationUpdate) toModel() *service.EvaluationUpdate {
	return &service.EvaluationUpdate{
		Status:           e.Status,
		Recommendation:   e.Recommendation,
		Confidence:       e.Confidence,
		Comments:         e.Comments,
		TimeSpentMinutes: e.TimeSpentMinutes,
		VideoWatched:     e.VideoWatched,
		VideoTimestamps:  e.VideoTimestamps,
		VideoQuality:     e.VideoQuality,
	}
}

type ScoreUpsert struct {
	CriteriaId int     `json:"criteria_id" binding:"required"`
	Score      float64 `json:"score"`
	Reasoning  *string `json:"reasoning"`
}

type CommentCreate struct {
	QuestionKey *string `json:"question_key"`
	Comment     string  `json:"comment" binding:"required"`
	IsPrivate   *bool   `json:"is_private"`
}

type Evaluation struct {
	Id               int                          `json:"id" binding:"required"`
	ApplicationId    int                          `json:"application_id" binding:"required"`
	ReviewerId       int                          `json:"reviewer_id" binding:"required"`
	Stage            repository.ReviewStage       `json:"stage" binding:"required"`
	Status           repository.EvaluationStatus  `json:"status" binding:"required"`
	OverallScore     *float64                     `json:"overall_score"`
	Recommendation   *repository.Recommendation   `json:"recommendation"`
	Confidence       *int                         `json:"confidence"`
	Comments         *string                      `json:"comments"`
	TimeSpentMinutes *int                         `json:"time_spent_minutes"`
	VideoWatched     bool                         `json:"video_watched"`
	VideoTimestamps  *string                      `json:"video_timestamps"`
	VideoQuality     *int                         `json:"video_quality"`
	CompletedAt      *time.Time                   `json:"completed_at"`
	Scores           []*Score                     `json:"scores"`
	CommentThread    []*Comment                   `json:"comment_thread"`
}

type Score struct {
	CriteriaId   int     `json:"criteria_id" binding:"required"`
	CriteriaName string  `json:"criteria_name"`
	Weight       float64 `json:"weight"`
	Score        float64 `json:"score" binding:"required"`
	Reasoning    *string `json:"reasoning"`
}

type Comment struct {
	Id          int       `json:"id" binding:"required"`
	QuestionKey *string   `json:"question_key"`
	Comment     string    `json:"comment" binding:"required"`
	IsPrivate   bool      `json:"is_private" binding:"required"`
	CreatedAt   time.Time `json:"created_at" binding:"required"`
}

func toEvaluationResponse(evaluation *repository.ApplicationEvaluation) *Evaluation {
	if evaluation == nil {
		return nil
	}
	return &Evaluation{
		Id:               evaluation.Id,
		ApplicationId:    evaluation.ApplicationId,
		ReviewerId:       evaluation.ReviewerId,
		Stage:            evaluation.Stage,
		Status:           evaluation.Status,
		OverallScore:     evaluation.OverallScore,
		Recommendation:   evaluation.Recommendation,
		Confidence:       evaluation.Confidence,
		Comments:         evaluation.Comments,
		TimeSpentMinutes: evaluation.TimeSpentMinutes,
		VideoWatched:     evaluation.VideoWatched,
		VideoTimestamps:  evaluation.VideoTimestamps,
		VideoQuality:     evaluation.VideoQuality,
		CompletedAt:      evaluation.CompletedAt,
		Scores:           utils.Map(evaluation.Scores, toScoreResponse),
		CommentThread:    utils.Map(evaluation.CommentThread, toCommentResponse),
	}
}

func toScoreResponse(score *repository.EvaluationScore) *Score {
	response := &Score{
		CriteriaId: score.CriteriaId,
		Score:      score.Score,
		Reasoning:  score.Reasoning,
	}
	if score.Criteria != nil {
		response.CriteriaName = score.Criteria.Name
		response.Weight = score.Criteria.Weight
	}
	return response
}

func toCommentResponse(comment *repository.EvaluationComment) *Comment {
	return &Comment{
		Id:          comment.Id,
		QuestionKey: comment.QuestionKey,
		Comment:     comment.Comment,
		IsPrivate:   comment.IsPrivate,
		CreatedAt:   comment.CreatedAt,
	}
}
