package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
)

// MemoryRepository keeps tokens in process memory. It honors the same
// version check as the persistent stores.
type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[string]models.RefreshToken
	byDigest map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]models.RefreshToken),
		byDigest: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byDigest[token.TokenDigest]; ok {
		return common.ErrorAlreadyExists
	}
	token.Version = newVersion()
	r.byID[token.ID] = copyToken(*token)
	r.byDigest[token.TokenDigest] = token.ID
	return nil
}

func (r *MemoryRepository) FindByDigest(_ context.Context, digest string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byDigest[digest]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t := copyToken(r.byID[id])
	return &t, nil
}

func (r *MemoryRepository) Update(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[token.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if stored.Version != token.Version {
		return common.ErrVersionConflict
	}

	if token.Revoked {
		at := time.Time{}
		if token.RevokedAt != nil {
			at = *token.RevokedAt
		}
		stored = stored.Revoke(at)
	}
	stored.ReplacedBy = token.ReplacedBy
	stored.Version = newVersion()
	r.byID[stored.ID] = stored

	token.Version = stored.Version
	return nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return false, common.ErrorNotFound
	}
	if stored.Revoked {
		return false, nil
	}
	r.revokeLocked(stored, at)
	return true, nil
}

func (r *MemoryRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byID {
		if t.UserID == userID && !t.Revoked {
			r.revokeLocked(t, at)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.byID, id)
			delete(r.byDigest, t.TokenDigest)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored tokens.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryRepository) revokeLocked(t models.RefreshToken, at time.Time) {
	t = t.Revoke(at)
	t.Version = newVersion()
	r.byID[t.ID] = t
}

func copyToken(t models.RefreshToken) models.RefreshToken {
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		t.RevokedAt = &at
	}
	return t
}
