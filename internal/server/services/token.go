// Package services contains server-side business logic. This file implements
// TokenService, which issues token pairs for authenticated principals and
// rotates refresh tokens with reuse detection.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/cryptox"
	"github.com/dmitrijs2005/gophtoken/internal/logging"
	"github.com/dmitrijs2005/gophtoken/internal/server/config"
	"github.com/dmitrijs2005/gophtoken/internal/server/identity"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtoken/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token
// with the metadata returned to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
	Scope     string
}

// AccessTokenIssuer mints access tokens. *auth.Issuer implements it.
type AccessTokenIssuer interface {
	Issue(user *models.User, now time.Time) (string, error)
	Validity() time.Duration
}

// TokenService provides the token operations:
// - Issue: mint the first pair for an authenticated principal
// - Rotate: exchange a refresh token for a new pair, detecting replays
// - RevokeAllForUser / LogoutEverywhere: revoke a user's whole token family
//
// It holds no locks. Races between rotations of one token are settled by the
// store's version check.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	issuer                       AccessTokenIssuer
	refreshTokenValidityDuration time.Duration
	reuseGracePeriod             time.Duration
	logger                       logging.Logger

	now       func() time.Time
	newSecret func() (raw, digest string, err error)
	newID     func() (string, error)
}

// NewTokenService constructs a TokenService. db may be nil when the manager
// needs no database.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, issuer AccessTokenIssuer, cfg *config.Config, logger logging.Logger) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		issuer:                       issuer,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		reuseGracePeriod:             cfg.ReuseGracePeriod,
		logger:                       logger.With("module", "tokens"),
		now:                          func() time.Time { return time.Now().UTC() },
		newSecret:                    cryptox.GenerateRefreshSecret,
		newID:                        newTokenID,
	}
}

func newTokenID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Issue runs the initial issuance for principal. The grant type is checked
// before anything touches the stores.
func (s *TokenService) Issue(ctx context.Context, grantType, principal string) (*TokenPair, error) {
	if grantType != common.GrantTypeWindowsIdentity {
		return nil, common.ErrUnsupportedGrantType
	}

	user, err := s.findUser(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrUserNotFound
	}
	return s.IssueInitial(ctx, user)
}

// IssueInitial mints a pair for an already resolved user and stores a fresh
// refresh token record.
func (s *TokenService) IssueInitial(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := s.now()
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("error generating token id: %w", err)
	}

	pair, record, err := s.mint(user, id, now)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.RefreshTokens(s.db).Create(ctx, record); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.logger.Info(ctx, "token pair issued", "user_id", user.ID, "token_id", id)
	return pair, nil
}

// Rotate exchanges rawSecret for a new pair.
//
// A token revoked longer than the grace period ago is a replay: every token of
// its owner is revoked and common.ErrTokenReuseDetected returned. Inside the
// grace period a token revoked by rotation may be rotated again; the new
// successor supersedes the one minted before, which is revoked. If that
// successor was already used or revoked the retry counts as a replay; if it
// was never stored the retry proceeds.
func (s *TokenService) Rotate(ctx context.Context, rawSecret string) (*TokenPair, error) {
	if strings.TrimSpace(rawSecret) == "" {
		return nil, common.ErrInvalidToken
	}

	repo := s.repomanager.RefreshTokens(s.db)
	now := s.now()

	token, err := repo.FindByDigest(ctx, cryptox.Digest(rawSecret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if token.ReuseDetected(now, s.reuseGracePeriod) {
		return nil, s.revokeFamily(ctx, repo, token, now)
	}

	if token.IsExpired(now) {
		return nil, common.ErrTokenExpired
	}

	successorID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("error generating token id: %w", err)
	}
	superseded := token.ReplacedBy

	rotated := token.Rotate(now, successorID)
	if err := repo.Update(ctx, &rotated); err != nil {
		switch {
		case errors.Is(err, common.ErrVersionConflict):
			s.logger.Warn(ctx, "concurrent refresh token rotation", "token_id", token.ID)
			return nil, common.ErrConcurrentModification
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error revoking refresh token: %w", err)
	}

	// A retry inside the grace window is only honest while the successor it
	// replaces is still unused. A successor that was never stored comes from
	// a rotation that failed after the update, so the retry is honest too.
	if superseded != "" {
		changed, err := repo.Revoke(ctx, superseded, now)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			changed = true
		case err != nil:
			return nil, fmt.Errorf("error superseding refresh token: %w", err)
		}
		if !changed {
			return nil, s.revokeFamily(ctx, repo, token, now)
		}
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrUserNotFound
	}

	pair, record, err := s.mint(user, successorID, now)
	if err != nil {
		return nil, err
	}

	if err := repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	s.logger.Info(ctx, "refresh token rotated",
		"user_id", user.ID, "token_id", token.ID, "successor_id", successorID, "superseded", superseded)
	return pair, nil
}

// RevokeAllForUser revokes every active refresh token of userID.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("error revoking token family: %w", err)
	}
	s.logger.Info(ctx, "refresh tokens revoked", "user_id", userID, "revoked", n)
	return n, nil
}

// LogoutEverywhere revokes every refresh token held by principal. Inactive
// users may still log out.
func (s *TokenService) LogoutEverywhere(ctx context.Context, principal string) (int64, error) {
	user, err := s.findUser(ctx, principal)
	if err != nil {
		return 0, err
	}
	return s.RevokeAllForUser(ctx, user.ID)
}

// --- helpers below ---

func (s *TokenService) findUser(ctx context.Context, principal string) (*models.User, error) {
	username, err := identity.Normalize(principal)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	return user, nil
}

func (s *TokenService) mint(user *models.User, id string, now time.Time) (*TokenPair, *models.RefreshToken, error) {
	access, err := s.issuer.Issue(user, now)
	if err != nil {
		return nil, nil, fmt.Errorf("error issuing access token: %w", err)
	}
	raw, digest, err := s.newSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	record := models.NewRefreshToken(id, user.ID, digest, now, s.refreshTokenValidityDuration)
	pair := &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    common.TokenTypeBearer,
		ExpiresIn:    int64(s.issuer.Validity() / time.Second),
		Scope:        user.Scope(),
	}
	return pair, &record, nil
}

// revokeFamily revokes every token of the owner of token after a replay.
func (s *TokenService) revokeFamily(ctx context.Context, repo refreshtokens.Repository, token *models.RefreshToken, now time.Time) error {
	n, err := repo.RevokeAllForUser(ctx, token.UserID, now)
	if err != nil {
		return fmt.Errorf("error revoking token family: %w", err)
	}
	s.logger.Warn(ctx, "refresh token reuse detected",
		"user_id", token.UserID, "token_id", token.ID, "revoked", n)
	return common.ErrTokenReuseDetected
}
