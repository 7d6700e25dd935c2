package ports

import (
	"context"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthService issues and validates session tokens.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Authenticate validates a session token and resolves it to a stored user.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}
