package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewRefreshToken(t *testing.T) {
	tok := NewRefreshToken("id1", "u1", "DIGEST", t0, 30*24*time.Hour)

	assert.Equal(t, "id1", tok.ID)
	assert.Equal(t, "u1", tok.UserID)
	assert.Equal(t, "DIGEST", tok.TokenDigest)
	assert.Equal(t, t0, tok.CreatedAt)
	assert.Equal(t, t0.Add(30*24*time.Hour), tok.ExpiresAt)
	assert.False(t, tok.Revoked)
	assert.Nil(t, tok.RevokedAt)
	assert.True(t, tok.IsActive(t0))
}

func TestRefreshToken_IsExpired(t *testing.T) {
	tok := NewRefreshToken("id1", "u1", "d", t0, time.Hour)

	assert.False(t, tok.IsExpired(t0.Add(time.Hour)))
	assert.True(t, tok.IsExpired(t0.Add(time.Hour+time.Nanosecond)))

	revoked := tok.Revoke(t0)
	assert.True(t, revoked.IsExpired(t0.Add(2*time.Hour)))
	assert.False(t, revoked.IsActive(t0))
}

func TestRefreshToken_RevokeIsSetOnce(t *testing.T) {
	tok := NewRefreshToken("id1", "u1", "d", t0, time.Hour)

	first := tok.Revoke(t0.Add(time.Minute))
	require.True(t, first.Revoked)
	require.NotNil(t, first.RevokedAt)
	assert.Equal(t, t0.Add(time.Minute), *first.RevokedAt)

	second := first.Revoke(t0.Add(10 * time.Minute))
	assert.True(t, second.Revoked)
	assert.Equal(t, t0.Add(time.Minute), *second.RevokedAt)

	// original value untouched
	assert.False(t, tok.Revoked)
	assert.Nil(t, tok.RevokedAt)
}

func TestRefreshToken_Rotate(t *testing.T) {
	tok := NewRefreshToken("id1", "u1", "d", t0, time.Hour)

	rotated := tok.Rotate(t0.Add(time.Second), "id2")
	assert.True(t, rotated.Revoked)
	assert.Equal(t, t0.Add(time.Second), *rotated.RevokedAt)
	assert.Equal(t, "id2", rotated.ReplacedBy)
	assert.Equal(t, tok.TokenDigest, rotated.TokenDigest)
	assert.Equal(t, tok.ExpiresAt, rotated.ExpiresAt)

	again := rotated.Rotate(t0.Add(30*time.Second), "id3")
	assert.Equal(t, t0.Add(time.Second), *again.RevokedAt)
	assert.Equal(t, "id3", again.ReplacedBy)
}

func TestRefreshToken_ReuseDetected(t *testing.T) {
	grace := 60 * time.Second
	tok := NewRefreshToken("id1", "u1", "d", t0, time.Hour)

	assert.False(t, tok.ReuseDetected(t0.Add(time.Hour), grace), "active token is never a replay")

	rotated := tok.Rotate(t0, "id2")
	assert.False(t, rotated.ReuseDetected(t0, grace))
	assert.False(t, rotated.ReuseDetected(t0.Add(grace), grace))
	assert.True(t, rotated.ReuseDetected(t0.Add(grace+time.Second), grace))

	revoked := tok.Revoke(t0)
	assert.True(t, revoked.ReuseDetected(t0, grace), "revoked without a successor gets no grace")

	noStamp := rotated
	noStamp.RevokedAt = nil
	assert.True(t, noStamp.ReuseDetected(t0, grace))
}

func TestUser_Scope(t *testing.T) {
	tests := []struct {
		roles []string
		want  string
	}{
		{roles: []string{"admin", "orders.read", "orders.write"}, want: "orders.read orders.write"},
		{roles: []string{"viewer", "orders.read"}, want: "orders.read"},
		{roles: []string{"admin"}, want: ""},
		{roles: nil, want: ""},
	}
	for _, tt := range tests {
		u := &User{Roles: tt.roles}
		assert.Equal(t, tt.want, u.Scope())
	}
}
