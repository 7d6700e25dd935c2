package domain

import (
	"errors"
	"time"
)

const (
	RoleFarmer   = "farmer"
	RoleConsumer = "consumer"
)

var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists with this email")
var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrUnauthenticated = errors.New("authentication required")

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the marketplace roles.
func ValidRole(role string) bool {
	return role == RoleFarmer || role == RoleConsumer
}
