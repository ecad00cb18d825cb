package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/auth"
)

// OperationOption adjusts an operation before it is registered.
type OperationOption func(*huma.Operation)

// WithRoles admits only callers holding at least one of roles. HumaAuth
// enforces it; the requirement is also appended to the description.
func WithRoles(roles ...auth.Role) OperationOption {
	return func(op *huma.Operation) {
		if op.Metadata == nil {
			op.Metadata = map[string]any{}
		}
		op.Metadata[string(MetaKeyRequireRoles)] = roles
	}
}

func WithTags(tags ...string) OperationOption {
	return func(op *huma.Operation) { op.Tags = append(op.Tags, tags...) }
}

func WithDescription(desc string) OperationOption {
	return func(op *huma.Operation) { op.Description = desc }
}

func WithSummary(summary string) OperationOption {
	return func(op *huma.Operation) { op.Summary = summary }
}

func WithOperationID(id string) OperationOption {
	return func(op *huma.Operation) { op.OperationID = id }
}

// WithErrors documents extra error statuses the handler can return.
func WithErrors(statuses ...int) OperationOption {
	return func(op *huma.Operation) { op.Errors = append(op.Errors, statuses...) }
}

type access int

const (
	accessPublic access = iota
	accessBearer
	accessHidden
)

// Handler is the shape of every typed huma handler.
type Handler[I, O any] func(ctx context.Context, input *I) (*O, error)

// PublicGet registers a GET that needs no token.
func PublicGet[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodGet, path, accessPublic, h, opts)
}

// ProtectedGet registers a GET that needs a bearer token.
func ProtectedGet[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodGet, path, accessBearer, h, opts)
}

// ProtectedPost registers a POST that needs a bearer token.
func ProtectedPost[I, O any](api huma.API, path string, h Handler[I, O], opts ...OperationOption) {
	register(api, http.MethodPost, path, accessBearer, h, opts)
}

// HiddenGet registers a GET left out of the OpenAPI document, for health checks.
func HiddenGet[I, O any](api huma.API, path string, h Handler[I, O]) {
	register(api, http.MethodGet, path, accessHidden, h, nil)
}

func register[I, O any](api huma.API, method, path string, level access, h Handler[I, O], opts []OperationOption) {
	op := huma.Operation{Method: method, Path: path, Hidden: level == accessHidden}
	if level == accessBearer {
		op.Security = []map[string][]string{{SecurityScheme: {}}}
		op.Errors = []int{http.StatusUnauthorized, http.StatusForbidden}
	}
	for _, opt := range opts {
		opt(&op)
	}
	if roles, _ := op.Metadata[string(MetaKeyRequireRoles)].([]auth.Role); len(roles) > 0 {
		op.Description = strings.TrimSpace(op.Description + "\n\nRequires one of the roles: " + joinRoles(roles) + ".")
	}
	huma.Register(api, op, h)
}

func joinRoles(roles []auth.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
