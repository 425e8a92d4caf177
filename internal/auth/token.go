package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "fundihub"

	// defaultSecret keeps the service bootable when no operator secret is
	// configured. It is not a security boundary; Verifier.UsingDefaultSecret
	// lets callers warn loudly when it is in effect.
	defaultSecret = "fundihub-insecure-dev-secret"

	defaultTokenTTL = 24 * time.Hour
)

// Claims is the decoded payload of a bearer credential.
type Claims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Admin       bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Verifier signs and validates bearer credentials using HS256.
type Verifier struct {
	secret       []byte
	usingDefault bool
	ttl          time.Duration
	now          func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTokenTTL overrides the lifetime of issued credentials.
func WithTokenTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier. An empty secret selects the insecure
// built-in default so the process still boots in degraded environments.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		ttl: defaultTokenTTL,
		now: time.Now,
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		v.secret = []byte(defaultSecret)
		v.usingDefault = true
	} else {
		v.secret = []byte(secret)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// UsingDefaultSecret reports whether the insecure built-in secret is active.
func (v *Verifier) UsingDefaultSecret() bool {
	return v.usingDefault
}

// Issue signs a credential for the given subject.
func (v *Verifier) Issue(subjectID, email, displayName string, admin bool) (string, time.Time, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject id is required")
	}
	now := v.now().UTC()
	expiresAt := now.Add(v.ttl)
	claims := Claims{
		Email:       strings.TrimSpace(strings.ToLower(email)),
		DisplayName: strings.TrimSpace(displayName),
		Admin:       admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses the raw credential and validates signature and claims.
// Failures map onto ErrMalformed, ErrInvalidSignature and ErrExpired.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformed
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return v.now().UTC() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Verifier) validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ErrMalformed
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrMalformed
	}
	now := v.now().UTC()
	if !now.Before(claims.ExpiresAt.Time) {
		return ErrExpired
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return ErrMalformed
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrMalformed
	}
	return nil
}
