package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/logger"
)

// writeError maps engine errors onto HTTP responses.  Unknown errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	body := echo.Map{"message": err.Error()}
	var (
		status int
		vErr   *apperr.ValidationError
		tErr   *apperr.TransitionError
		cErr   *apperr.CapacityError
	)
	switch {
	case errors.As(err, &vErr):
		status, body["error"], body["field"] = http.StatusBadRequest, "validation_failed", vErr.Field
	case errors.Is(err, apperr.ErrValidation):
		status, body["error"] = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperr.ErrDenied):
		status, body["error"] = http.StatusForbidden, "denied"
	case errors.Is(err, apperr.ErrNotFound):
		status, body["error"] = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrInactive):
		status, body["error"] = http.StatusConflict, "resource_inactive"
	case errors.As(err, &cErr):
		status, body["error"] = http.StatusConflict, "insufficient_capacity"
		body["unit"], body["requested"], body["available"] = cErr.Unit, cErr.Requested, cErr.Available
	case errors.As(err, &tErr):
		status, body["error"] = http.StatusConflict, "invalid_transition"
		body["from"], body["to"] = tErr.From, tErr.To
	default:
		logger.FromEcho(c).Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}
