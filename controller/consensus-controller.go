package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ftc/app_error"
	"ftc/config"
	"ftc/repository"
	"ftc/service"
	"ftc/utils"

	"github.com/gin-contrib/cache"
	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type ConsensusController struct {
	consensusService *service.ConsensusService
	userService      *service.UserService
	mu               sync.Mutex
	connections      map[*websocket.Conn]bool
}

func NewConsensusController(db *gorm.DB, decisionWriter *kafka.Writer) *ConsensusController {
	controller := &ConsensusController{
		consensusService: service.NewConsensusService(db, decisionWriter),
		userService:      service.NewUserService(db),
		connections:      make(map[*websocket.Conn]bool),
	}
	controller.StartPipelineUpdater()
	return controller
}

func setupConsensusController(db *gorm.DB, cacheStore persistence.CacheStore, decisionWriter *kafka.Writer) []RouteInfo {
	e := NewConsensusController(db, decisionWriter)
	staffRoles := []repository.Permission{repository.PermissionAdmin, repository.PermissionStaff}
	routes := []RouteInfo{
		{Method: "GET", Path: "/review/applications/:id/consensus", HandlerFunc: e.getConsensusDataHandler(), Authenticated: true, RequiredRoles: staffRoles},
		{Method: "PUT", Path: "/review/applications/:id/consensus", HandlerFunc: e.updateConsensusHandler(), Authenticated: true, RequiredRoles: staffRoles},
		// polled by dashboards; cache at the push period so polling never outruns the websocket
		{Method: "GET", Path: "/review/pipeline", HandlerFunc: cache.CachePage(cacheStore, time.Duration(config.Env().PipelinePushPeriod)*time.Second, e.getPipelineHandler()), Authenticated: true, RequiredRoles: staffRoles},
		{Method: "GET", Path: "/review/pipeline/ws", HandlerFunc: e.pipelineWebSocketHandler, Authenticated: true, RequiredRoles: staffRoles},
	}
	return routes
}

// @id GetConsensusData
// @Description Assembles everything a decider needs: completed evaluations with reviewer competency profiles, scores, comments, responses and the existing consensus. Performs no aggregation.
// @Security BearerAuth
// @Tags consensus
// @Produce json
// @Param id path int true "Application Id"
// @Success 200 {object} ConsensusData
// @Router /review/applications/{id}/consensus [get]
func (e *ConsensusController) getConsensusDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		data, err := e.consensusService.GetConsensusData(id)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toConsensusDataResponse(data))
	}
}

// @id UpdateConsensus
// @Description Upserts the consensus row. A decision-bearing call stamps decided_at/decided_by in the same write.
// @Security BearerAuth
// @Tags consensus
// @Accept json
// @Produce json
// @Param id path int true "Application Id"
// @Param body body ConsensusUpdate true "Decision, score or notes"
// @Success 200 {object} Consensus
// @Router /review/applications/{id}/consensus [put]
func (e *ConsensusController) updateConsensusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		var consensusUpdate ConsensusUpdate
		if err := c.BindJSON(&consensusUpdate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		consensus, err := e.consensusService.UpdateConsensus(user, id, consensusUpdate.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toConsensusResponse(consensus))
	}
}

// @id GetReviewPipeline
// @Description Buckets in-flight applications into needs-review / needs-consensus / decided
// @Security BearerAuth
// @Tags consensus
// @Produce json
// @Param reviewer_id query int false "Only applications this reviewer evaluates"
// @Success 200 {object} PipelineResponse
// @Router /review/pipeline [get]
func (e *ConsensusController) getPipelineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var reviewerId *int
		if raw := c.Query("reviewer_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			reviewerId = &id
		}
		pipeline, err := e.consensusService.GetReviewPipeline(reviewerId)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toPipelineResponse(pipeline))
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// admin dashboards connect from allow-listed origins handled by CORS
		return true
	},
}

// @id PipelineWebSocket
// @Description Websocket pushing the bucketed pipeline snapshot on connect and on every refresh period.
// @Security BearerAuth
// @Tags consensus
// @Router /review/pipeline/ws [get]
// @Success 200 {object} PipelineResponse
func (e *ConsensusController) pipelineWebSocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		http.NotFound(c.Writer, c.Request)
		return
	}
	defer conn.Close()

	pipeline, err := e.consensusService.GetReviewPipeline(nil)
	if err != nil {
		return
	}
	serialized, err := json.Marshal(toPipelineResponse(pipeline))
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, serialized); err != nil {
		return
	}

	e.mu.Lock()
	e.connections[conn] = true
	e.mu.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			e.mu.Lock()
			delete(e.connections, conn)
			e.mu.Unlock()
			return
		}
	}
}

func (e *ConsensusController) StartPipelineUpdater() {
	period := time.Duration(config.Env().PipelinePushPeriod) * time.Second
	go func() {
		for {
			time.Sleep(period)
			e.mu.Lock()
			active := len(e.connections)
			e.mu.Unlock()
			if active == 0 {
				continue
			}
			pipeline, err := e.consensusService.GetReviewPipeline(nil)
			if err != nil {
				continue
			}
			serialized, err := json.Marshal(toPipelineResponse(pipeline))
			if err != nil {
				continue
			}
			e.mu.Lock()
			for conn := range e.connections {
				if err := conn.WriteMessage(websocket.TextMessage, serialized); err != nil {
					conn.Close()
					delete(e.connections, conn)
				}
			}
			e.mu.Unlock()
		}
	}()
}

type ConsensusUpdate struct {
	FinalDecision   *repository.FinalDecision `json:"final_decision"`
	ConsensusScore  *float64                  `json:"consensus_score"`
	DiscussionNotes *string                   `json:"discussion_notes"`
}

func (e *ConsensusUpdate) toModel() *service.ConsensusUpdate {
	return &service.ConsensusUpdate{
		FinalDecision:   e.FinalDecision,
		ConsensusScore:  e.ConsensusScore,
		DiscussionNotes: e.DiscussionNotes,
	}
}

type Consensus struct {
	ApplicationId   int                       `json:"application_id" binding:"required"`
	FinalDecision   *repository.FinalDecision `json:"final_decision"`
	ConsensusScore  *float64                  `json:"consensus_score"`
	DiscussionNotes *string                   `json:"discussion_notes"`
	DecidedById     *int                      `json:"decided_by_id"`
	DecidedAt       *time.Time                `json:"decided_at"`
}

func toConsensusResponse(consensus *repository.ReviewConsensus) *Consensus {
	if consensus == nil {
		return nil
	}
	return &Consensus{
		ApplicationId:   consensus.ApplicationId,
		FinalDecision:   consensus.FinalDecision,
		ConsensusScore:  consensus.ConsensusScore,
		DiscussionNotes: consensus.DiscussionNotes,
		DecidedById:     consensus.DecidedById,
		DecidedAt:       consensus.DecidedAt,
	}
}

type Reviewer struct {
	Id           int           `json:"id" binding:"required"`
	Name         string        `json:"name" binding:"required"`
	Email        string        `json:"email" binding:"required"`
	Competencies []*Competency `json:"competencies" binding:"required"`
}

type ConsensusEvaluation struct {
	Evaluation
	Reviewer *Reviewer `json:"reviewer"`
}

type Response struct {
	QuestionKey string `json:"question_key"`
	Prompt      string `json:"prompt"`
	Answer      string `json:"answer" binding:"required"`
}

type ConsensusData struct {
	ApplicationId int                          `json:"application_id" binding:"required"`
	Status        repository.ApplicationStatus `json:"status" binding:"required"`
	Responses     []*Response                  `json:"responses" binding:"required"`
	Evaluations   []*ConsensusEvaluation       `json:"evaluations" binding:"required"`
	Consensus     *Consensus                   `json:"consensus"`
}

func toConsensusDataResponse(data *service.ConsensusData) *ConsensusData {
	return &ConsensusData{
		ApplicationId: data.Application.Id,
		Status:        data.Application.Status,
		Responses:     utils.Map(data.Application.Responses, toResponseResponse),
		Evaluations: utils.Map(data.Evaluations, func(evaluation *repository.ApplicationEvaluation) *ConsensusEvaluation {
			response := &ConsensusEvaluation{Evaluation: *toEvaluationResponse(evaluation)}
			if evaluation.Reviewer != nil {
				response.Reviewer = &Reviewer{
					Id:           evaluation.Reviewer.Id,
					Name:         evaluation.Reviewer.Name,
					Email:        evaluation.Reviewer.Email,
					Competencies: utils.Map(data.Competencies[evaluation.ReviewerId], toCompetencyResponse),
				}
			}
			return response
		}),
		Consensus: toConsensusResponse(data.Consensus),
	}
}

func toResponseResponse(response *repository.ApplicationResponse) *Response {
	result := &Response{Answer: response.Answer}
	if response.Question != nil {
		result.QuestionKey = response.Question.QuestionKey
		result.Prompt = response.Question.Prompt
	}
	return result
}

type PipelineApplication struct {
	Id              int                          `json:"id" binding:"required"`
	EventId         int                          `json:"event_id" binding:"required"`
	Status          repository.ApplicationStatus `json:"status" binding:"required"`
	SubmittedAt     *time.Time                   `json:"submitted_at"`
	EvaluationCount int                          `json:"evaluation_count" binding:"required"`
	CompletedCount  int                          `json:"completed_count" binding:"required"`
	Consensus       *Consensus                   `json:"consensus"`
}

type PipelineResponse struct {
	ApplicationReview []*PipelineApplication `json:"applicationReview" binding:"required"`
	Consensus         []*PipelineApplication `json:"consensus" binding:"required"`
	FinalDecision     []*PipelineApplication `json:"finalDecision" binding:"required"`
}

func toPipelineApplication(application *repository.Application) *PipelineApplication {
	completed := utils.Filter(application.Evaluations, func(evaluation *repository.ApplicationEvaluation) bool {
		return evaluation.Status == repository.EvaluationCompleted
	})
	return &PipelineApplication{
		Id:              application.Id,
		EventId:         application.EventId,
		Status:          application.Status,
		SubmittedAt:     application.SubmittedAt,
		EvaluationCount: len(application.Evaluations),
		CompletedCount:  len(completed),
		Consensus:       toConsensusResponse(application.Consensus),
	}
}

func toPipelineResponse(pipeline *service.Pipeline) *PipelineResponse {
	return &PipelineResponse{
		ApplicationReview: utils.Map(pipeline.ApplicationReview, toPipelineApplication),
		Consensus:         utils.Map(pipeline.Consensus, toPipelineApplication),
		FinalDecision:     utils.Map(pipeline.FinalDecision, toPipelineApplication),
	}
}
