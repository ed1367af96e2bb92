package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/auth_service/internal/keys"
)

// DefaultIssuer is the iss claim written to and required on every token.
const DefaultIssuer = "auth-service"

const AccessTokenTTL = time.Hour

// Option configures an Issuer or a Verifier.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests that pin the calendar.
func WithClock(now func() time.Time) Option {
	return func(c *clock) { c.now = now }
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type Issuer struct {
	material keys.Material
	issuer   string
	clock
}

func NewIssuer(material keys.Material, issuer string, opts ...Option) *Issuer {
	return &Issuer{material: material, issuer: issuer, clock: newClock(opts)}
}

// Now is the issuer's notion of the current instant.
func (i *Issuer) Now() time.Time { return i.now() }

// IsLeapYear reports whether year has 366 days in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// RefreshLifetime is one calendar year measured from now: 366 days when the
// current year is a leap year, 365 otherwise.
func RefreshLifetime(now time.Time) time.Duration {
	days := 365
	if IsLeapYear(now.Year()) {
		days = 366
	}
	return time.Duration(days) * 24 * time.Hour
}

// RefreshExpiry is the absolute expiry for a refresh token minted now.
func (i *Issuer) RefreshExpiry() time.Time {
	now := i.now()
	return now.Add(RefreshLifetime(now))
}

// GenerateAccessToken signs p with the RSA key and returns the token with its
// expiry.
func (i *Issuer) GenerateAccessToken(p Payload) (string, time.Time, error) {
	if i.material.AccessKey == nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrSigning, keys.ErrKeyUnavailable)
	}
	if !p.complete() {
		return "", time.Time{}, fmt.Errorf("%w: subject and role are required", ErrSigning)
	}

	now := i.now()
	exp := now.Add(AccessTokenTTL)
	claims := AccessClaims{
		Role: p.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.material.AccessKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return token, exp, nil
}

// GenerateRefreshToken signs p with the refresh secret. p.LedgerID must name
// the ledger record created for this token and expiresAt must be its expiry.
func (i *Issuer) GenerateRefreshToken(p Payload, expiresAt time.Time) (string, error) {
	if len(i.material.RefreshSecret) == 0 {
		return "", fmt.Errorf("%w: %w", ErrSigning, keys.ErrKeyUnavailable)
	}
	if !p.complete() || p.LedgerID == "" {
		return "", fmt.Errorf("%w: subject, role and ledger id are required", ErrSigning)
	}

	claims := RefreshClaims{
		Role: p.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.LedgerID,
			Subject:   p.Subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.material.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return token, nil
}
