package controller

import (
	"strconv"
	"time"

	"ftc/app_error"
	"ftc/repository"
	"ftc/service"
	"ftc/utils"

	"github.com/gin-contrib/cache"
	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CriteriaController struct {
	criteriaService *service.CriteriaService
}

func NewCriteriaController(db *gorm.DB) *CriteriaController {
	return &CriteriaController{criteriaService: service.NewCriteriaService(db)}
}

func setupCriteriaController(db *gorm.DB, cacheStore persistence.CacheStore) []RouteInfo {
	e := NewCriteriaController(db)
	routes := []RouteInfo{
		// the catalog is read on every scoring screen; cache briefly
		{Method: "GET", Path: "/review/criteria", HandlerFunc: cache.CachePage(cacheStore, time.Minute, e.getActiveCriteriaHandler()), Authenticated: true},
		{Method: "GET", Path: "/review/criteria/all", HandlerFunc: e.getAllCriteriaHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
		{Method: "POST", Path: "/review/criteria", HandlerFunc: e.createCriteriaHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
		{Method: "PATCH", Path: "/review/criteria/:id", HandlerFunc: e.updateCriteriaHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
	}
	return routes
}

// @id GetActiveCriteria
// @Description Fetches the active rubric in display order
// @Security BearerAuth
// @Tags criteria
// @Produce json
// @Success 200 {array} Criteria
// @Router /review/criteria [get]
func (e *CriteriaController) getActiveCriteriaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		criteria, err := e.criteriaService.GetActiveCriteria()
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, utils.Map(criteria, toCriteriaResponse))
	}
}

// @id GetAllCriteria
// @Description Fetches the full rubric including deactivated criteria
// @Security BearerAuth
// @Tags criteria
// @Produce json
// @Success 200 {array} Criteria
// @Router /review/criteria/all [get]
func (e *CriteriaController) getAllCriteriaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		criteria, err := e.criteriaService.GetAllCriteria()
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, utils.Map(criteria, toCriteriaResponse))
	}
}

// @id CreateCriteria
// @Description Creates a rubric criterion
// @Security BearerAuth
// @Tags criteria
// @Accept json
// @Produce json
// @Param body body CriteriaCreate true "Criterion to create"
// @Success 201 {object} Criteria
// @Router /review/criteria [post]
func (e *CriteriaController) createCriteriaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var criteriaCreate CriteriaCreate
		if err := c.BindJSON(&criteriaCreate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		criteria, err := e.criteriaService.CreateCriteria(criteriaCreate.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(201, toCriteriaResponse(criteria))
	}
}

// @id UpdateCriteria
// @Description Updates weight, order or active flag of a criterion. Criteria are never hard-deleted.
// @Security BearerAuth
// @Tags criteria
// @Accept json
// @Produce json
// @Param id path int true "Criteria Id"
// @Param body body CriteriaUpdate true "Fields to update"
// @Success 200 {object} Criteria
// @Router /review/criteria/{id} [patch]
func (e *CriteriaController) updateCriteriaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		var criteriaUpdate CriteriaUpdate
		if err := c.BindJSON(&criteriaUpdate); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		criteria, err := e.criteriaService.UpdateCriteria(id, criteriaUpdate.toModel())
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toCriteriaResponse(criteria))
	}
}

type CriteriaCreate struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	SortOrder   int     `json:"sort_order"`
	Weight      float64 `json:"weight" binding:"required"`
}

func (e *CriteriaCreate) toModel() *repository.EvaluationCriteria {
	return &repository.EvaluationCriteria{
		Name:        e.Name,
		Description: e.Description,
		SortOrder:   e.SortOrder,
		Weight:      e.Weight,
	}
}

type CriteriaUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	SortOrder   *int     `json:"sort_order"`
	Weight      *float64 `json:"weight"`
	IsActive    *bool    `json:"is_active"`
}

func (e *CriteriaUpdate) toModel() *service.CriteriaUpdate {
	return &service.CriteriaUpdate{
		Name:        e.Name,
		Description: e.Description,
		SortOrder:   e.SortOrder,
		Weight:      e.Weight,
		IsActive:    e.IsActive,
	}
}

type Criteria struct {
	Id          int     `json:"id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	SortOrder   int     `json:"sort_order" binding:"required"`
	Weight      float64 `json:"weight" binding:"required"`
	IsActive    bool    `json:"is_active" binding:"required"`
}

func toCriteriaResponse(criteria *repository.EvaluationCriteria) *Criteria {
	return &Criteria{
		Id:          criteria.Id,
		Name:        criteria.Name,
		Description: criteria.Description,
		SortOrder:   criteria.SortOrder,
		Weight:      criteria.Weight,
		IsActive:    criteria.IsActive,
	}
}
