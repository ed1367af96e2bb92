package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/auth_service/internal/roles"
)

var (
	ErrSigning        = errors.New("token signing failed")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")
	ErrRevokedToken   = errors.New("token revoked")
)

// Payload is the identity carried by both token kinds. LedgerID is set only
// on refresh tokens, where it travels as the jti claim.
type Payload struct {
	Subject  string
	Role     roles.Role
	LedgerID string
}

type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (p Payload) complete() bool {
	return p.Subject != "" && p.Role.Valid()
}
