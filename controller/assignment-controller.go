package controller

import (
	"strconv"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AssignmentController struct {
	assignmentService *service.AssignmentService
	userService       *service.UserService
}

func NewAssignmentController(db *gorm.DB) *AssignmentController {
	return &AssignmentController{
		assignmentService: service.NewAssignmentService(db),
		userService:       service.NewUserService(db),
	}
}

func setupAssignmentController(db *gorm.DB) []RouteInfo {
	e := NewAssignmentController(db)
	baseUrl := "/review/assignments"
	routes := []RouteInfo{
		{Method: "POST", Path: "", HandlerFunc: e.createAssignmentHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin, repository.PermissionStaff}},
		{Method: "POST", Path: "/bulk", HandlerFunc: e.bulkCreateAssignmentsHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin, repository.PermissionStaff}},
		{Method: "POST", Path: "/self", HandlerFunc: e.selfAssignHandler(), Authenticated: true},
		{Method: "GET", Path: "/available", HandlerFunc: e.getAvailableApplicationsHandler(), Authenticated: true},
	}
	for i, route := range routes {
		routes[i].Path = baseUrl + route.Path
	}
	return routes
}

// @id CreateAssignment
// @Description Assigns a reviewer to an application for a stage
// @Security BearerAuth
// @Tags assignments
// @Accept json
// @Produce json
// @Param body body AssignmentCreate true "Assignment to create"
// @Success 201 {object} Assignment
// @Router /review/assignments [post]
func (e *AssignmentController) createAssignmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var assignmentCreate AssignmentCreate
		if err := c.BindJSON(&assignmentCreate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		assignment, err := e.assignmentService.CreateAssignment(user, assignmentCreate.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(201, toAssignmentResponse(assignment))
	}
}

// @id BulkCreateAssignments
// @Description Assigns a reviewer to many applications, skipping existing assignments
// @Security BearerAuth
// @Tags assignments
// @Accept json
// @Produce json
// @Param body body BulkAssignmentCreate true "Bulk assignment request"
// @Success 201 {object} service.BulkAssignmentResult
// @Router /review/assignments/bulk [post]
func (e *AssignmentController) bulkCreateAssignmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var bulkCreate BulkAssignmentCreate
		if err := c.BindJSON(&bulkCreate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		result, err := e.assignmentService.BulkCreateAssignments(user, bulkCreate.ApplicationIds, bulkCreate.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(201, result)
	}
}

// @id SelfAssign
// @Description Claims an application from the availability queue for the calling reviewer
// @Security BearerAuth
// @Tags assignments
// @Accept json
// @Produce json
// @Param body body SelfAssignmentCreate true "Application to claim"
// @Success 201 {object} Assignment
// @Router /review/assignments/self [post]
func (e *AssignmentController) selfAssignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var selfAssign SelfAssignmentCreate
		if err := c.BindJSON(&selfAssign); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		assignment, err := e.assignmentService.SelfAssign(user, selfAssign.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(201, toAssignmentResponse(assignment))
	}
}

// @id GetAvailableApplications
// @Description Lists reviewable applications not yet claimed by the caller for the stage
// @Security BearerAuth
// @Tags assignments
// @Produce json
// @Param stage query string true "Review stage"
// @Param event_id query int false "Event Id"
// @Param limit query int false "Page size"
// @Success 200 {array} repository.AvailableApplication
// @Router /review/assignments/available [get]
func (e *AssignmentController) getAvailableApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		stage := repository.ReviewStage(c.Query("stage"))
		if stage == "" {
			c.JSON(400, gin.H{"error": "stage is required"})
			return
		}
		eventId, _ := strconv.Atoi(c.Query("event_id"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		applications, err := e.assignmentService.GetAvailableApplications(user, eventId, stage, limit)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, applications)
	}
}

type AssignmentCreate struct {
	ApplicationId int                    `json:"application_id" binding:"required"`
	ReviewerId    int                    `json:"reviewer_id" binding:"required"`
	Stage         repository.ReviewStage `json:"stage" binding:"required"`
	Priority      int                    `json:"priority"`
	DueDate       *time.Time             `json:"due_date"`
	Notes         *string                `json:"notes"`
}

func (e *AssignmentCreate) toModel() *service.AssignmentCreate {
	return &service.AssignmentCreate{
		ApplicationId: e.ApplicationId,
		ReviewerId:    e.ReviewerId,
		Stage:         e.Stage,
		Priority:      e.Priority,
		DueDate:       e.DueDate,
		Notes:         e.Notes,
	}
}

type BulkAssignmentCreate struct {
	ApplicationIds []int                  `json:"application_ids" binding:"required"`
	ReviewerId     int                    `json:"reviewer_id" binding:"required"`
	Stage          repository.ReviewStage `json:"stage" binding:"required"`
	Priority       int                    `json:"priority"`
	DueDate        *time.Time             `json:"due_date"`
	Notes          *string                `json:"notes"`
}

func (e *BulkAssignmentCreate) toModel() *service.AssignmentCreate {
	return &service.AssignmentCreate{
		ReviewerId: e.ReviewerId,
		Stage:      e.Stage,
		Priority:   e.Priority,
		DueDate:    e.DueDate,
		Notes:      e.Notes,
	}
}

type SelfAssignmentCreate struct {
	ApplicationId int                    `json:"application_id" binding:"required"`
	Stage         repository.ReviewStage `json:"stage" binding:"required"`
	Priority      int                    `json:"priority"`
	Notes         *string                `json:"notes"`
}

func (e *SelfAssignmentCreate) toModel() *service.AssignmentCreate {
	return &service.AssignmentCreate{
		ApplicationId: e.ApplicationId,
		Stage:         e.Stage,
		Priority:      e.Priority,
		Notes:         e.Notes,
	}
}

type Assignment struct {
	Id            int                    `json:"id" binding:"required"`
	ApplicationId int                    `json:"application_id" binding:"required"`
	ReviewerId    int                    `json:"reviewer_id" binding:"required"`
	Stage         repository.ReviewStage `json:"stage" binding:"required"`
	Priority      int                    `json:"priority" binding:"required"`
	DueDate       *time.Time             `json:"due_date"`
	Notes         *string                `json:"notes"`
	AssignedAt    time.Time              `json:"assigned_at" binding:"required"`
}

func toAssignmentResponse(assignment *repository.ReviewerAssignment) *Assignment {
	if assignment == nil {
		return nil
	}
	return &Assignment{
		Id:            assignment.Id,
		ApplicationId: assignment.ApplicationId,
		ReviewerId:    assignment.ReviewerId,
		Stage:         assignment.Stage,
		Priority:      assignment.Priority,
		DueDate:       assignment.DueDate,
		Notes:         assignment.Notes,
		AssignedAt:    assignment.AssignedAt,
	}
}
