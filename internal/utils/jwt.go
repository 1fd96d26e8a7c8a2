// Package utils provides access-token minting for development and tests.
// Production identity is resolved upstream; the engine only verifies.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Claims describe who a token speaks for.  Subject is the customer id;
// TenantID scopes staff tokens to one tenant.  At least one is required.
type Claims struct {
	Subject  string
	TenantID string
	Role     string
}

// NewAccessToken signs an HS256 token carrying sub, tenant_id, role, exp
// and iat.
func NewAccessToken(secret string, c Claims, ttl time.Duration) (AccessToken, error) {
	if c.Subject == "" && c.TenantID == "" {
		return AccessToken{}, errors.New("utils: token needs a subject or a tenant")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"role": c.Role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.TenantID != "" {
		claims["tenant_id"] = c.TenantID
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
