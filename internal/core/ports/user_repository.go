package ports

import (
	"context"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// UserRepository defines the interface for user credential persistence.
type UserRepository interface {
	// Create inserts the user and returns it with its ID set.
	// Returns domain.ErrUserExists when the email is already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByIDs returns the users found, keyed by ID. Missing IDs are skipped.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
}
