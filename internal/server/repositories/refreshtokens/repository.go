// Package refreshtokens declares the refresh token store contract and its
// PostgreSQL, Redis and in-memory implementations.
//
// Every implementation guards updates with the record's Version stamp:
// Update succeeds only when the stored version still equals the one the
// caller read, and a lost race is reported as common.ErrVersionConflict,
// distinct from common.ErrorNotFound.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/google/uuid"
)

// Repository stores refresh tokens by digest.
type Repository interface {
	// Create inserts token and assigns its initial Version. A digest already
	// present yields common.ErrorAlreadyExists.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByDigest returns the token stored under digest, or
	// common.ErrorNotFound.
	FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error)

	// Update writes the revocation fields and ReplacedBy of token if the
	// stored Version equals token.Version, then sets token.Version to the new
	// stamp. Revoked never goes back to false and RevokedAt keeps its first
	// value whatever token carries.
	Update(ctx context.Context, token *models.RefreshToken) error

	// Revoke marks a single token revoked at at unless it already is. It
	// reports whether the token changed.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)

	// RevokeAllForUser revokes every non-revoked token of userID and returns
	// how many changed.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteExpired removes tokens whose ExpiresAt is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// newVersion returns a fresh opaque version stamp.
func newVersion() string {
	return uuid.NewString()
}
