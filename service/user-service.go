package service

import (
	"fmt"

	"ftc/auth"
	"ftc/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type UserService struct {
	userRepository *repository.UserRepository
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		userRepository: repository.NewUserRepository(db),
	}
}

func (s *UserService) GetUserById(id int) (*repository.User, error) {
	return s.userRepository.GetUserById(id)
}

func (s *UserService) GetUserFromAuthHeader(c *gin.Context) (*repository.User, error) {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) >= 7 && authHeader[:7] == "Bearer " {
		return s.GetUserFromToken(authHeader[7:])
	}
	// websocket clients cannot set headers; fall back to cookie
	if cookie, err := c.Cookie("auth"); err == nil {
		return s.GetUserFromToken(cookie)
	}
	return nil, fmt.Errorf("authorization header is invalid")
}

func (s *UserService) GetUserFromToken(tokenString string) (*repository.User, error) {
	token, err := auth.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	claims := &auth.Claims{}
	if token.Valid {
		claims.FromJWTClaims(token.Claims)
		if err := claims.Valid(); err != nil {
			return nil, err
		}
		return s.GetUserById(claims.UserId)
	}
	return nil, jwt.ErrInvalidKey
}

func (s *UserService) ChangePermissions(userId int, permissions []repository.Permission) (*repository.User, error) {
	user, err := s.GetUserById(userId)
	if err != nil {
		return nil, err
	}
	user.Permissions = make([]string, 0, len(permissions))
	for _, permission := range permissions {
		user.Permissions = append(user.Permissions, string(permission))
	}
	return s.userRepository.SaveUser(user)
}
