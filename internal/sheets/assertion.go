package sheets

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// assertionLifetime is the fixed validity of a signed assertion. The token
// endpoint rejects anything longer; the assertion is never renewed mid-flight.
const assertionLifetime = time.Hour

// AssertionSigner builds RS256-signed JWT assertions for the service-account
// grant.
type AssertionSigner struct {
	issuer   string
	scope    string
	audience string
	key      *rsa.PrivateKey
}

// NewAssertionSigner decodes the private key material and prepares a signer.
//
// The key arrives as base64 of the full PEM text. The extra encoding layer
// exists so the key survives storage in environments that mangle newlines;
// both layers must be unwrapped here.
func NewAssertionSigner(issuer, privateKeyBase64, scope, audience string) (*AssertionSigner, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(privateKeyBase64))
	if err != nil {
		return nil, &AssertionSigningError{Err: fmt.Errorf("decode base64 key material: %w", err)}
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, &AssertionSigningError{Err: fmt.Errorf("parse private key: %w", err)}
	}

	return &AssertionSigner{
		issuer:   issuer,
		scope:    scope,
		audience: audience,
		key:      key,
	}, nil
}

// Sign produces a compact three-segment assertion valid from now for one hour.
func (s *AssertionSigner) Sign(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   s.issuer,
		"scope": s.scope,
		"aud":   s.audience,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", &AssertionSigningError{Err: err}
	}
	return signed, nil
}
