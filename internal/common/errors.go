// Package common defines shared constants and sentinel errors used across
// GophToken components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Identity errors.
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrUserNotFound         = errors.New("user not found")

	// Refresh token lifecycle errors.
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenReuseDetected = errors.New("token reuse detected")

	// ErrConcurrentModification reports that another request rotated the
	// same refresh token first. The client may resubmit.
	ErrConcurrentModification = errors.New("concurrent modification")
)
