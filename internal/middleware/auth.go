// Package middleware contains http middlewares shared by all routes.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/auth"
)

var log = logrus.WithField("layer", "api").WithField("package", "middleware")

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns identity bound by Authenticated.
func IdentityFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityKey{}).(string)

	return v, ok && v != ""
}

// Authenticated verifies Authorization header and binds the identity to the request context.
// Requests without a valid credential are answered with 401.
func Authenticated(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Header.Get("Authorization"))
			if err != nil {
				log.WithField("path", r.URL.Path).WithError(err).Debug("authentication failed")
				writeMessage(w, http.StatusUnauthorized, failureMessage(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "No token provided"
	case errors.Is(err, auth.ErrExpiredCredential):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "Invalid token"
	default:
		return "Authentication required"
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
	}{message}); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
