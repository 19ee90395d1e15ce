package repository

import (
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Permission string

const (
	PermissionAdmin Permission = "admin"
	PermissionStaff Permission = "staff"
)

type User struct {
	Id          int            `gorm:"primaryKey"`
	Name        string         `gorm:"not null"`
	Email       string         `gorm:"not null;uniqueIndex"`
	Permissions pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
}

// HasPermission checks by exact match. Role values are a closed enum,
// never matched by substring.
func (u *User) HasPermission(permission Permission) bool {
	for _, p := range u.Permissions {
		if p == string(permission) {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user holds any of the roles that gate
// admin-only review operations.
func (u *User) IsStaff() bool {
	return u.HasPermission(PermissionAdmin) || u.HasPermission(PermissionStaff)
}

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) GetUserById(userId int) (*User, error) {
	var user User
	result := r.DB.First(&user, userId)
	if result.Error != nil {
		return nil, fmt.Errorf("user with id %d not found", userId)
	}
	return &user, nil
}

func (r *UserRepository) SaveUser(user *User) (*User, error) {
	result := r.DB.Save(user)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to save user: %v", result.Error)
	}
	return user, nil
}
