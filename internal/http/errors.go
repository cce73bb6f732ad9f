package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

// statusClientClosedRequest is nginx's code for a client that went away before the response.
const statusClientClosedRequest = 499

// handleError converts service errors into HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpStatus int
		code       string
		message    = err.Error()
		serverErr  *backend.ServerError
	)

	switch {
	case errors.Is(err, service.ErrQuantityLimit):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, domain.ErrValidation):
		httpStatus = http.StatusBadRequest
		code = "validation_failed"
	case errors.Is(err, cart.ErrLineNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, backend.ErrAuthExpired):
		httpStatus = http.StatusUnauthorized
		code = "relogin"
		message = "session expired, please sign in again"
	case errors.Is(err, session.ErrInFlight):
		httpStatus = http.StatusConflict
		code = "in_progress"
	case errors.Is(err, session.ErrStale):
		httpStatus = http.StatusConflict
		code = "stale"
	case errors.Is(err, service.ErrReceiptsDisabled):
		httpStatus = http.StatusNotImplemented
		code = "not_configured"
	case errors.As(err, &serverErr):
		httpStatus, code = backendStatus(serverErr.Status)
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, backend.ErrBadResponse):
		httpStatus = http.StatusBadGateway
		code = "backend_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	case errors.Is(err, context.Canceled):
		zap.L().Debug("request canceled by client",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("path", r.URL.Path))
		respondError(w, statusClientClosedRequest, "canceled", "request canceled")
		return
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
		message = "internal server error"
	}

	if httpStatus >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondError(w, httpStatus, code, message)
}

// backendStatus passes client errors reported by the backend through and turns
// everything else into a bad gateway.
func backendStatus(status int) (int, string) {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return http.StatusBadRequest, "rejected"
	case http.StatusNotFound:
		return http.StatusNotFound, "not_found"
	case http.StatusConflict:
		return http.StatusConflict, "conflict"
	default:
		return http.StatusBadGateway, "backend_error"
	}
}
