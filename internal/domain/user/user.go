package user

import (
	"errors"
	"time"
)

const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// ValidRole reports whether role is one of the three platform roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Name         string    `json:"name"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("user not found")
var ErrEmailAlreadyUsed = errors.New("email already in use")

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2,max=120"`
	PhotoURL string `json:"photoURL" binding:"omitempty,url"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=120"`
	PhotoURL string `json:"photoURL" binding:"omitempty,url"`
	Bio      string `json:"bio" binding:"omitempty,max=1000"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user creator admin"`
}
