// Package mw contains HTTP middleware for the wallet engine API.
package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/logging"
)

// GetUserClaims retrieves verified token claims from context.
func GetUserClaims(ctx context.Context) *auth.Claims {
	return auth.GetClaimsFromContext(ctx)
}

// bearerToken extracts the token from an Authorization header value.
// A bare token without the Bearer prefix is accepted.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// OptionalAuth returns middleware that verifies a bearer token if present and
// stores its claims in the request context. Requests without a valid token
// continue unauthenticated; HumaAuth rejects them where an operation
// requires it.
func OptionalAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyToken(bearerToken(header))
			if err != nil {
				slog.Debug("bearer token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := logging.WithSubject(auth.WithClaims(r.Context(), claims), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles returns middleware for plain chi routes that requires one of
// roles. It must run after OptionalAuth.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserClaims(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if !claims.HasAnyRole(roles...) {
				http.Error(w, `{"error":"insufficient role"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
