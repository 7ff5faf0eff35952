package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates the platform token failed validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// PlatformClaims are the JWT claims the hosted auth platform issues.
type PlatformClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates platform bearer tokens. The signing secret and
// expected issuer are injected at startup; nothing in the request path
// touches the environment.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier builds a verifier for HS256 platform tokens.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: platform token secret is required")
	}
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}, nil
}

// Verify checks the token signature and required claims.
func (v *TokenVerifier) Verify(token string) (*PlatformClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &PlatformClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*PlatformClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := v.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Mint signs a platform token. Used by the bootstrap tooling and tests; the
// production issuer is the hosted auth platform itself.
func (v *TokenVerifier) Mint(userID, email string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("auth: userID is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}

	now := v.now().UTC()
	claims := PlatformClaims{
		Email: strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (v *TokenVerifier) validateClaims(claims *PlatformClaims) error {
	if v.issuer != "" && claims.Issuer != v.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := v.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return errors.New("token not yet valid")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
