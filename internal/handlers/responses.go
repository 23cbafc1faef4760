package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/middleware"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind error) int {
	switch kind {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error as an ErrorResponse. Domain errors carry
// their own message; unexpected failures are logged and hidden from clients.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(status)

	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	case domain.Kind(err) != nil:
		status = statusFor(domain.Kind(err))
		message = err.Error()
	default:
		middleware.FromContext(c.Request().Context()).Error("Unhandled request error",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}

	resp := ErrorResponse{Code: http.StatusText(status), Message: message}
	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, resp)
	}
	if writeErr != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to write error response", "error", writeErr)
	}
}
