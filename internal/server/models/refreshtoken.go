package models

import "time"

// RefreshToken is a persisted refresh credential. Only the digest of the raw
// secret is kept.
//
// Values are treated as immutable: state changes go through Revoke and Rotate,
// which return an updated copy. Version is owned by the store and is compared
// on every update.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenDigest string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Revoked     bool
	RevokedAt   *time.Time
	// ReplacedBy is the ID of the successor minted from this token.
	ReplacedBy string
	Version    string
}

// NewRefreshToken returns an active token that expires validity after now.
func NewRefreshToken(id, userID, digest string, now time.Time, validity time.Duration) RefreshToken {
	return RefreshToken{
		ID:          id,
		UserID:      userID,
		TokenDigest: digest,
		CreatedAt:   now,
		ExpiresAt:   now.Add(validity),
	}
}

// IsExpired reports whether now is past ExpiresAt. Revocation does not matter.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive reports whether the token can still be rotated without the grace
// window.
func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}

// ReuseDetected reports whether presenting this token at now must be treated
// as a replay. Only a token revoked by rotation gets the grace window; one
// revoked any other way, or with no timestamp, is replayed at once.
func (t RefreshToken) ReuseDetected(now time.Time, grace time.Duration) bool {
	if !t.Revoked {
		return false
	}
	if t.RevokedAt == nil || t.ReplacedBy == "" {
		return true
	}
	return now.After(t.RevokedAt.Add(grace))
}

// Revoke returns a revoked copy. RevokedAt keeps its first value.
func (t RefreshToken) Revoke(now time.Time) RefreshToken {
	if t.Revoked && t.RevokedAt != nil {
		return t
	}
	at := now
	t.Revoked = true
	t.RevokedAt = &at
	return t
}

// Rotate returns a revoked copy pointing at the successor.
func (t RefreshToken) Rotate(now time.Time, successorID string) RefreshToken {
	t = t.Revoke(now)
	t.ReplacedBy = successorID
	return t
}
