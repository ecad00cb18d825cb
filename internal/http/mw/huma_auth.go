package mw

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/logging"
)

// HumaAuthConfig holds dependencies for the Huma auth middleware.
type HumaAuthConfig struct {
	Verifier *auth.Verifier
}

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

const (
	// MetaKeyRequireRoles lists the roles allowed to call an operation.
	MetaKeyRequireRoles OperationMetadataKey = "requireRoles"
)

// HumaAuth returns a Huma middleware that handles authentication based on
// operation security. Claims already placed on the context by OptionalAuth
// are reused; otherwise the Authorization header is verified here.
func HumaAuth(api huma.API, cfg HumaAuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		stdCtx := ctx.Context()
		claims := GetUserClaims(stdCtx)
		if claims == nil {
			header := ctx.Header("Authorization")
			if header == "" {
				huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if cfg.Verifier == nil {
				huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
				return
			}
			var err error
			claims, err = cfg.Verifier.VerifyToken(bearerToken(header))
			if err != nil {
				slog.Debug("auth validation failed", "error", err)
				huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
				return
			}
			stdCtx = logging.WithSubject(auth.WithClaims(stdCtx, claims), claims.Subject)
		}

		if roles := requiredRoles(op); !claims.HasAnyRole(roles...) {
			slog.Debug("role check failed",
				"subject", claims.Subject,
				"roles", claims.Roles,
				"required", roles,
				"operation", op.OperationID,
			)
			huma.WriteErr(api, ctx, http.StatusForbidden, "insufficient role")
			return
		}

		next(huma.WithContext(ctx, stdCtx))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

// requiredRoles returns the roles from operation metadata. Nil means any
// authenticated caller.
func requiredRoles(op *huma.Operation) []auth.Role {
	if op.Metadata == nil {
		return nil
	}
	if val, ok := op.Metadata[string(MetaKeyRequireRoles)]; ok {
		if roles, ok := val.([]auth.Role); ok {
			return roles
		}
	}
	return nil
}
