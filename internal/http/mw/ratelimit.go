package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/jmylchreest/wallet-engine/internal/auth"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// RoleLimits maps roles to their requests per minute limit.
	// A value of 0 means unlimited (no rate limiting applied).
	RoleLimits map[auth.Role]int
	// IPRequestsPerMinute is a fallback rate limit by IP for unauthenticated requests
	IPRequestsPerMinute int
}

// DefaultRateLimitConfig returns the role limits for the given per-minute
// budgets. Privileged and admin callers are not limited.
func DefaultRateLimitConfig(servicePerMinute, userPerMinute int) RateLimitConfig {
	return RateLimitConfig{
		RoleLimits: map[auth.Role]int{
			auth.RoleService:    servicePerMinute,
			auth.RoleUser:       userPerMinute,
			auth.RolePrivileged: 0,
			auth.RoleAdmin:      0,
		},
		IPRequestsPerMinute: userPerMinute,
	}
}

// rolePrecedence orders roles from most to least privileged. A caller is
// limited by the first role it holds.
var rolePrecedence = []auth.Role{auth.RoleAdmin, auth.RolePrivileged, auth.RoleService, auth.RoleUser}

// effectiveRole returns the role a caller is rate limited as, or "".
func effectiveRole(claims *auth.Claims) auth.Role {
	for _, r := range rolePrecedence {
		if claims.HasRole(r) {
			return r
		}
	}
	return ""
}

// RateLimitByRole returns a middleware that rate limits by token subject,
// with the budget chosen by the caller's role. It must run after
// OptionalAuth. Callers without a token fall back to IP-based limiting.
func RateLimitByRole(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyBySubject := httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		claims := GetUserClaims(r.Context())
		if claims == nil || claims.Subject == "" {
			return httprate.KeyByIP(r)
		}
		return "sub:" + claims.Subject, nil
	})

	roleLimiters := make(map[auth.Role]*httprate.RateLimiter)
	for role, limit := range cfg.RoleLimits {
		if limit > 0 {
			roleLimiters[role] = httprate.NewRateLimiter(limit, time.Minute, keyBySubject)
		}
	}

	fallbackLimiter := httprate.NewRateLimiter(
		cfg.IPRequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := effectiveRole(GetUserClaims(r.Context()))

			if limit, ok := cfg.RoleLimits[role]; ok && limit == 0 {
				next.ServeHTTP(w, r)
				return
			}

			limiter, ok := roleLimiters[role]
			if !ok {
				limiter = fallbackLimiter
			}
			limiter.Handler(next).ServeHTTP(w, r)
		})
	}
}
