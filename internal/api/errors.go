package api

import (
	"errors"
	"net/http"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// retryAfterSeconds is advertised on infrastructure failures
const retryAfterSeconds = "5"

func statusFor(err error) int {
	switch {
	case errors.Is(err, compliance.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, compliance.ErrReportNotFound), errors.Is(err, service.ErrDecisionNotFound):
		return http.StatusNotFound
	case errors.Is(err, compliance.ErrNoProvider), errors.Is(err, compliance.ErrCapabilityUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, compliance.ErrNotInitialized), errors.Is(err, compliance.ErrInfrastructure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps engine errors to HTTP responses. Internal failures are
// logged and never echoed to the caller.
func (h *ComplianceHandler) respondError(c echo.Context, err error) error {
	status := statusFor(err)
	if compliance.Retryable(err) {
		c.Response().Header().Set("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Compliance request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return c.JSON(status, map[string]string{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
