package controller

import (
	"strconv"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/service"
	"ftc/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CompetencyController struct {
	competencyService *service.CompetencyService
	userService       *service.UserService
}

func NewCompetencyController(db *gorm.DB) *CompetencyController {
	return &CompetencyController{
		competencyService: service.NewCompetencyService(db),
		userService:       service.NewUserService(db),
	}
}

func setupCompetencyController(db *gorm.DB) []RouteInfo {
	e := NewCompetencyController(db)
	baseUrl := "/review/competencies"
	routes := []RouteInfo{
		{Method: "PUT", Path: "", HandlerFunc: e.setCompetencyHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
		{Method: "PUT", Path: "/bulk", HandlerFunc: e.bulkSetCompetenciesHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
		{Method: "DELETE", Path: "/:reviewer_id/:category", HandlerFunc: e.removeCompetencyHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
		{Method: "GET", Path: "/:reviewer_id", HandlerFunc: e.getCompetenciesHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin, repository.PermissionStaff}},
	}
	for i, route := range routes {
		routes[i].Path = baseUrl + route.Path
	}
	return routes
}

// @id SetReviewerCompetency
// @Description Upserts one competency category for a reviewer
// @Security BearerAuth
// @Tags competencies
// @Accept json
// @Produce json
// @Param body body CompetencySet true "Competency to set"
// @Success 200 {object} Competency
// @Router /review/competencies [put]
func (e *CompetencyController) setCompetencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var competencySet CompetencySet
		if err := c.BindJSON(&competencySet); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		competency, err := e.competencyService.SetCompetency(user, competencySet.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toCompetencyResponse(competency))
	}
}

// @id BulkSetReviewerCompetencies
// @Description Upserts many competencies in one transaction
// @Security BearerAuth
// @Tags competencies
// @Accept json
// @Produce json
// @Param body body []CompetencySet true "Competencies to set"
// @Success 200 {array} Competency
// @Router /review/competencies/bulk [put]
func (e *CompetencyController) bulkSetCompetenciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var competencySets []*CompetencySet
		if err := c.BindJSON(&competencySets); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		competencies, err := e.competencyService.BulkSetCompetencies(user, utils.Map(competencySets, func(set *CompetencySet) *service.CompetencySet {
			return set.toModel()
		}))
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, utils.Map(competencies, toCompetencyResponse))
	}
}

// @id RemoveReviewerCompetency
// @Description Deletes one competency category for a reviewer
// @Security BearerAuth
// @Tags competencies
// @Produce json
// @Param reviewer_id path int true "Reviewer Id"
// @Param category path string true "Competency category"
// @Success 204
// @Router /review/competencies/{reviewer_id}/{category} [delete]
func (e *CompetencyController) removeCompetencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewerId, err := strconv.Atoi(c.Param("reviewer_id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		category := repository.CompetencyCategory(c.Param("category"))
		if err := e.competencyService.RemoveCompetency(reviewerId, category); err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(204, nil)
	}
}

// @id GetReviewerCompetencies
// @Description Fetches a reviewer's competency profile
// @Security BearerAuth
// @Tags competencies
// @Produce json
// @Param reviewer_id path int true "Reviewer Id"
// @Success 200 {array} Competency
// @Router /review/competencies/{reviewer_id} [get]
func (e *CompetencyController) getCompetenciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewerId, err := strconv.Atoi(c.Param("reviewer_id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		competencies, err := e.competencyService.GetCompetenciesForReviewer(reviewerId)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, utils.Map(competencies, toCompetencyResponse))
	}
}

type CompetencySet struct {
	ReviewerId      int                           `json:"reviewer_id" binding:"required"`
	Category        repository.CompetencyCategory `json:"category" binding:"required"`
	CompetencyLevel int                           `json:"competency_level" binding:"required"`
	BaseWeight      float64                       `json:"base_weight" binding:"required"`
	Notes           *string                       `json:"notes"`
}

func (e *CompetencySet) toModel() *service.CompetencySet {
	return &service.CompetencySet{
		ReviewerId:      e.ReviewerId,
		Category:        e.Category,
		CompetencyLevel: e.CompetencyLevel,
		BaseWeight:      e.BaseWeight,
		Notes:           e.Notes,
	}
}

type Competency struct {
	ReviewerId      int                           `json:"reviewer_id" binding:"required"`
	Category        repository.CompetencyCategory `json:"category" binding:"required"`
	CompetencyLevel int                           `json:"competency_level" binding:"required"`
	BaseWeight      float64                       `json:"base_weight" binding:"required"`
	Notes           *string                       `json:"notes"`
	UpdatedAt       time.Time                     `json:"updated_at" binding:"required"`
}

func toCompetencyResponse(competency *repository.ReviewerCompetency) *Competency {
	return &Competency{
		ReviewerId:      competency.ReviewerId,
		Category:        competency.Category,
		CompetencyLevel: competency.CompetencyLevel,
		BaseWeight:      competency.BaseWeight,
		Notes:           competency.Notes,
		UpdatedAt:       competency.UpdatedAt,
	}
}
