// Package auth mints signed access tokens and manages the RSA key that signs
// them.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtoken/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access token claims: registered ones plus the display name,
// the full role set and the OAuth scope derived from it.
type Claims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	Scope string   `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// IssuerConfig carries the values stamped into every access token.
type IssuerConfig struct {
	Issuer   string
	Audience string
	KeyID    string
	Validity time.Duration
}

// Issuer signs RS256 access tokens with a key loaded once at startup.
type Issuer struct {
	key *rsa.PrivateKey
	cfg IssuerConfig
}

func NewIssuer(key *rsa.PrivateKey, cfg IssuerConfig) (*Issuer, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || cfg.KeyID == "" {
		return nil, errors.New("issuer, audience and key id are required")
	}
	if cfg.Validity <= 0 {
		return nil, fmt.Errorf("invalid access token validity %s", cfg.Validity)
	}
	return &Issuer{key: key, cfg: cfg}, nil
}

// Issue mints an access token for user valid from now for the configured
// validity. It performs no I/O.
func (i *Issuer) Issue(user *models.User, now time.Time) (string, error) {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := &Claims{
		Name:  user.UserName,
		Roles: roles,
		Scope: user.Scope(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   user.UserName,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.Validity)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.cfg.KeyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("error signing access token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenString against the issuer's own public key, as a
// resource server would, evaluating time claims at now.
func (i *Issuer) Parse(tokenString string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != i.cfg.KeyID {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return &i.key.PublicKey, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Validity is the lifetime of minted access tokens.
func (i *Issuer) Validity() time.Duration { return i.cfg.Validity }

func (i *Issuer) KeyID() string { return i.cfg.KeyID }

func (i *Issuer) PublicKey() *rsa.PublicKey { return &i.key.PublicKey }
