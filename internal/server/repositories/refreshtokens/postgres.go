package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/common"
	"github.com/dmitrijs2005/gophtoken/internal/dbx"
	"github.com/dmitrijs2005/gophtoken/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_digest, created_at, expires_at, revoked, revoked_at, replaced_by, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	version := newVersion()
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenDigest, token.CreatedAt, token.ExpiresAt,
		token.Revoked, nullTime(token.RevokedAt), nullString(token.ReplacedBy), version)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	token.Version = version
	return nil
}

// FindByDigest returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_digest, created_at, expires_at, revoked, revoked_at, replaced_by, version
		FROM refresh_tokens
		WHERE token_digest = $1
	`
	var (
		t          models.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&t.ID, &t.UserID, &t.TokenDigest, &t.CreatedAt, &t.ExpiresAt,
		&t.Revoked, &revokedAt, &replacedBy, &t.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	t.ReplacedBy = replacedBy.String
	return &t, nil
}

// Update compares and swaps on version. revoked is OR-ed and revoked_at is
// COALESCE-d so the stored row can only move forward.
func (r *PostgresRepository) Update(ctx context.Context, token *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = revoked OR $3, revoked_at = COALESCE(revoked_at, $4), replaced_by = $5, version = $6
		WHERE id = $1 AND version = $2
	`
	version := newVersion()
	res, err := r.db.ExecContext(ctx, query,
		token.ID, token.Version, token.Revoked, nullTime(token.RevokedAt), nullString(token.ReplacedBy), version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return r.missOrConflict(ctx, token.ID)
	}
	token.Version = version
	return nil
}

func (r *PostgresRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return common.ErrVersionConflict
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2, version = $3
		WHERE id = $1 AND revoked = FALSE
	`
	n, err := r.exec(ctx, query, id, at, newVersion())
	return n > 0, err
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2, version = $3
		WHERE user_id = $1 AND revoked = FALSE
	`
	return r.exec(ctx, query, userID, at, newVersion())
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	return r.exec(ctx, query, cutoff)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
