// Package users declares the user directory contract and its PostgreSQL and
// in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophtoken/internal/server/models"
)

// Repository is the user directory. Users are provisioned outside the token
// flow; the flow only reads them.
type Repository interface {
	// Create inserts user, assigning ID and CreatedAt when empty. A taken
	// username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername looks a user up by canonical username. Inactive users are
	// returned too; callers decide. Missing users yield common.ErrorNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByID is GetByUsername keyed by identifier.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Count returns the number of users in the directory.
	Count(ctx context.Context) (int64, error)
}
