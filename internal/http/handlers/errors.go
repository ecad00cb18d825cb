package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/wallet-engine/internal/service"
)

// toHumaError maps service error kinds onto HTTP statuses. Internal errors
// are logged and reported without their cause.
func toHumaError(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrPaymentRequired):
		return huma.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return huma.Error403Forbidden(err.Error())
	default:
		var se huma.StatusError
		if errors.As(err, &se) {
			return err
		}
		slog.ErrorContext(ctx, "request failed", "operation", op, "error", err)
		return huma.Error500InternalServerError(op + " failed")
	}
}
