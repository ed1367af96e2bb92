package tokens

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/auth_service/internal/keys"
	"github.com/Skotchmaster/auth_service/internal/roles"
)

// Verifier checks tokens minted by an Issuer configured with the same
// material and issuer. It holds no storage: refresh tokens that pass here
// still have to be matched against the ledger.
type Verifier struct {
	publicKey *rsa.PublicKey
	secret    []byte
	issuer    string
	clock
}

func NewVerifier(material keys.Material, issuer string, opts ...Option) *Verifier {
	return &Verifier{
		publicKey: material.AccessPublicKey(),
		secret:    material.RefreshSecret,
		issuer:    issuer,
		clock:     newClock(opts),
	}
}

func (v *Verifier) VerifyAccessToken(raw string) (Payload, error) {
	if v.publicKey == nil {
		return Payload{}, keys.ErrKeyUnavailable
	}

	var claims AccessClaims
	if err := v.parse(raw, &claims, jwt.SigningMethodRS256, v.publicKey); err != nil {
		return Payload{}, err
	}

	p := Payload{Subject: claims.Subject, Role: roles.Role(claims.Role)}
	if !p.complete() {
		return Payload{}, fmt.Errorf("%w: missing subject or role", ErrMalformedToken)
	}
	return p, nil
}

// ParseRefreshToken performs the stateless half of refresh verification:
// signature, expiry, issuer and claim shape.
func (v *Verifier) ParseRefreshToken(raw string) (Payload, error) {
	if len(v.secret) == 0 {
		return Payload{}, keys.ErrKeyUnavailable
	}

	var claims RefreshClaims
	if err := v.parse(raw, &claims, jwt.SigningMethodHS256, v.secret); err != nil {
		return Payload{}, err
	}

	p := Payload{Subject: claims.Subject, Role: roles.Role(claims.Role), LedgerID: claims.ID}
	if !p.complete() || p.LedgerID == "" {
		return Payload{}, fmt.Errorf("%w: missing subject, role or jti", ErrMalformedToken)
	}
	return p, nil
}

func (v *Verifier) parse(raw string, claims jwt.Claims, method jwt.SigningMethod, key any) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		// Non-zero padding bits in the last signature character must not
		// decode to the same bytes.
		jwt.WithStrictDecoding(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return classify(raw, err)
	}
	return nil
}

func classify(raw string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		// Header and claims decode but the signature segment does not:
		// that is a corrupted signature, not a foreign shape.
		if _, _, uerr := jwt.NewParser().ParseUnverified(raw, &jwt.RegisteredClaims{}); uerr == nil {
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
