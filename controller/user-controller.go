package controller

import (
	"strconv"

	"ftc/app_error"
	"ftc/repository"
	"ftc/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserController struct {
	userService *service.UserService
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{userService: service.NewUserService(db)}
}

func setupUserController(db *gorm.DB) []RouteInfo {
	e := NewUserController(db)
	routes := []RouteInfo{
		{Method: "GET", Path: "/users/self", HandlerFunc: e.getUserHandler(), Authenticated: true},
		{Method: "PATCH", Path: "/users/:user_id", HandlerFunc: e.changePermissionsHandler(), Authenticated: true, RequiredRoles: []repository.Permission{repository.PermissionAdmin}},
	}
	return routes
}

// @id GetUser
// @Description Fetches the authenticated user
// @Tags user
// @Produce json
// @Success 200 {object} User
// @Security BearerAuth
// @Router /users/self [get]
func (e *UserController) getUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := e.userService.GetUserFromAuthHeader(c)
		if err != nil {
			c.JSON(401, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(200, toUserResponse(user))
	}
}

// @id ChangePermissions
// @Description Changes the permissions of a user
// @Tags user
// @Accept json
// @Produce json
// @Param user_id path int true "User Id"
// @Param permissions body []repository.Permission true "Permissions"
// @Success 200 {object} User
// @Security BearerAuth
// @Router /users/{user_id} [patch]
func (e *UserController) changePermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, err := strconv.Atoi(c.Param("user_id"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		var permissions []repository.Permission
		if err := c.BindJSON(&permissions); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		user, err := e.userService.ChangePermissions(userId, permissions)
		if err != nil {
			app_error.Abort(c, err)
			return
		}
		c.JSON(200, toUserResponse(user))
	}
}

type User struct {
	Id          int      `json:"id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email" binding:"required"`
	Permissions []string `json:"permissions" binding:"required"`
}

func toUserResponse(user *repository.User) *User {
	return &User{
		Id:          user.Id,
		Name:        user.Name,
		Email:       user.Email,
		Permissions: user.Permissions,
	}
}
