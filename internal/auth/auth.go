// Package auth issues and verifies bearer credentials and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/blogjet/blogjet/internal/identity"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingCredential is returned when request has no token.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential is returned when token is malformed or its signature is wrong.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential is returned when token is expired.
	ErrExpiredCredential = errors.New("expired credential")
)

// Claims ...
type Claims struct {
	// UserID duplicates subject for clients reading the payload directly.
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Verifier verifies credentials.
type Verifier interface {
	Verify(header string) (string, error)
}

// Issuer issues credentials.
type Issuer interface {
	Issue(subject string) (string, time.Time, error)
}

// Tokens is HS256 implementation of Verifier and Issuer.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates new instance of Tokens.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a new credential for subject.
func (t *Tokens) Issue(subject string) (string, time.Time, error) {
	subject = identity.Canonical(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidCredential)
	}

	now := t.now()
	exp := now.Add(t.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return s, exp, nil
}

// Verify validates Authorization header value and returns canonical identity.
func (t *Tokens) Verify(header string) (string, error) {
	raw, err := bearerToken(header)
	if err != nil {
		return "", err
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredCredential
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidCredential, err.Error())
	}

	subject := identity.Canonical(claims.Subject)
	if subject == "" {
		subject = identity.Canonical(claims.UserID)
	}

	if subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidCredential)
	}

	return subject, nil
}

// bearerToken extracts token from Authorization header value.
// Scheme is matched case-insensitively; any other scheme is an invalid credential.
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" || strings.EqualFold(strings.TrimSpace(header), strings.TrimSpace(bearerPrefix)) {
		return "", ErrMissingCredential
	}

	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: unsupported scheme", ErrInvalidCredential)
	}

	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", ErrMissingCredential
	}

	return raw, nil
}

// HashPassword ...
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(b), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
