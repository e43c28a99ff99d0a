package iam

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AssertionLifetime is how long a signed assertion stays valid.
const AssertionLifetime = 360 * time.Second

// Claims is the claim set of a service-account assertion. The audience is
// a single string, not an array.
type Claims struct {
	Audience  string           `json:"aud"`
	Issuer    string           `json:"iss"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)                  { return "", nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// NewClaims returns the claims for an assertion issued at now.
func NewClaims(serviceAccountID, audience string, now time.Time) Claims {
	now = now.Truncate(time.Second)
	return Claims{
		Audience:  audience,
		Issuer:    serviceAccountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AssertionLifetime)),
	}
}

// SignAssertion signs claims with PS256 and carries keyID in the "kid" header.
func SignAssertion(claims Claims, keyID string, key *rsa.PrivateKey) (string, error) {
	if keyID == "" {
		return "", errors.New("service account key id is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodPS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}

// ParsePrivateKey decodes PEM key material. Text before the PEM block (such as
// the comment line of a downloaded service-account key) is ignored, and literal
// "\n" sequences are expanded when the value came through a single-line
// environment variable.
func ParsePrivateKey(material string) (*rsa.PrivateKey, error) {
	if !strings.Contains(material, "\n") && strings.Contains(material, `\n`) {
		material = strings.ReplaceAll(material, `\n`, "\n")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(material))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
