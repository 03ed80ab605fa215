package auth

import (
	"encoding/base64"
	"math/big"
)

// JWK is an RSA public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the body served at /.well-known/jwks.json.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS publishes the verification key of the issuer.
func (i *Issuer) JWKS() JWKSet {
	pub := i.PublicKey()
	return JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		Kid: i.cfg.KeyID,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}
