// Package auth issues and verifies the HS256 bearer tokens callers present.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingClaims = errors.New("missing required claims")
)

// Role is a caller privilege carried in the roles claim.
type Role string

const (
	// RoleService is a resource provider reporting usage.
	RoleService Role = "SERVICE"
	// RolePrivileged may grant and move balances.
	RolePrivileged Role = "PRIVILEGED"
	RoleAdmin      Role = "ADMIN"
	RoleUser       Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleService, RolePrivileged, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Claims are the claims of a wallet engine token.
type Claims struct {
	jwt.RegisteredClaims
	Roles    []Role   `json:"roles,omitempty"`
	Projects []string `json:"projects,omitempty"` // projects the subject may act for
}

// HasRole reports whether the token carries role.
func (c *Claims) HasRole(role Role) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// HasAnyRole reports whether the token carries at least one of roles.
// An empty list matches any caller.
func (c *Claims) HasAnyRole(roles ...Role) bool {
	if len(roles) == 0 {
		return c != nil
	}
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// MemberOf reports whether the subject may act for project.
func (c *Claims) MemberOf(project string) bool {
	return c != nil && slices.Contains(c.Projects, project)
}

// Verifier verifies and mints HS256 tokens with one shared key.
type Verifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier. key is the derived signing key, never the
// raw secret.
func NewVerifier(key []byte, issuer string) *Verifier {
	return &Verifier{key: key, issuer: issuer, now: time.Now}
}

// VerifyToken parses tokenString and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.key, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingClaims
	}
	for _, r := range claims.Roles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, r)
		}
	}
	return claims, nil
}

// Mint signs a token for subject valid for ttl.
func (v *Verifier) Mint(subject string, roles []Role, projects []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrMissingClaims
	}
	for _, r := range roles {
		if !r.Valid() {
			return "", fmt.Errorf("unknown role %q", r)
		}
	}
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles:    roles,
		Projects: projects,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ClaimsKey is the context key for verified token claims.
	ClaimsKey ContextKey = "wallet_claims"
)

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaimsFromContext retrieves verified claims from context.
func GetClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}
