// Package keys loads the signing material used by the token issuer and verifier.
package keys

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var ErrKeyUnavailable = errors.New("signing key unavailable")

// Material is the process-wide signing configuration. It is loaded once at
// startup and only read afterwards.
type Material struct {
	AccessKey     *rsa.PrivateKey
	RefreshSecret []byte
}

// AccessPublicKey returns the public half of the access-token key, or nil
// when no private key is loaded.
func (m Material) AccessPublicKey() *rsa.PublicKey {
	if m.AccessKey == nil {
		return nil
	}
	return &m.AccessKey.PublicKey
}

// Load reads the PEM encoded RSA private key at privateKeyPath and pairs it
// with the refresh secret.
func Load(privateKeyPath string, refreshSecret []byte) (Material, error) {
	pemBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return Material{}, fmt.Errorf("%w: read private key: %w", ErrKeyUnavailable, err)
	}
	return FromPEM(pemBytes, refreshSecret)
}

func FromPEM(privateKeyPEM, refreshSecret []byte) (Material, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return Material{}, fmt.Errorf("%w: parse private key: %w", ErrKeyUnavailable, err)
	}
	if len(refreshSecret) == 0 {
		return Material{}, fmt.Errorf("%w: refresh secret is empty", ErrKeyUnavailable)
	}
	return Material{AccessKey: key, RefreshSecret: refreshSecret}, nil
}
