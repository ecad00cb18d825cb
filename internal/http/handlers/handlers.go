// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/auth"
	"github.com/jmylchreest/wallet-engine/internal/http/mw"
	"github.com/jmylchreest/wallet-engine/internal/models"
	"github.com/jmylchreest/wallet-engine/internal/service"
	"github.com/jmylchreest/wallet-engine/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// LivezOutput is the liveness check response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez reports that the process is serving requests.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is the part of *sql.DB the readiness check needs.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ReadyzOutput is the readiness check response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadyzHandler reports readiness once the database answers.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness handler.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz pings the database within the request's deadline.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable", err)
		}
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// getSubject extracts the token subject from context.
func getSubject(ctx context.Context) string {
	claims := mw.GetUserClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// callerOwner resolves the wallet owner a browse request acts as: the token
// subject, or the project named by X-Project.
func callerOwner(ctx context.Context, project string) (models.WalletOwner, error) {
	claims := mw.GetUserClaims(ctx)
	if claims == nil || claims.Subject == "" {
		return models.WalletOwner{}, huma.Error401Unauthorized("unauthorized")
	}
	caller := service.Caller{
		Subject:  claims.Subject,
		Projects: claims.Projects,
		Admin:    claims.HasRole(auth.RoleAdmin),
	}
	owner, err := caller.OwnerFor(project)
	if err != nil {
		return models.WalletOwner{}, toHumaError(ctx, "resolve owner", err)
	}
	return owner, nil
}
