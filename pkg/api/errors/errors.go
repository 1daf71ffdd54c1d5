package errors

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
)

const internalMessage = "An internal error occurred. Please try again later."

// Respond writes a {error, message} body with the status mapped from code
func Respond(c echo.Context, code, message string) error {
	return c.JSON(domain.StatusCode(code), models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// ValidationError returns the failing fields of a request
func ValidationError(c echo.Context, details []models.FieldError) error {
	if details == nil {
		details = []models.FieldError{}
	}
	return c.JSON(http.StatusBadRequest, models.ValidationErrorResponse{
		Error:   domain.ErrCodeValidation,
		Message: "Request validation failed",
		Details: details,
	})
}

// InternalError logs err, reports it to Sentry when a hub is attached to
// the request and returns a generic 500 without internal details.
func InternalError(c echo.Context, log logger.Logger, err error) error {
	log.Error("internal error",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"error", err)

	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("path", c.Path())
			hub.CaptureException(err)
		})
	}

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   domain.ErrCodeInternal,
		Message: internalMessage,
	})
}

// FromDomain renders a domain error with its own code and message. Anything
// else, including domain internal errors, becomes an opaque 500.
func FromDomain(c echo.Context, log logger.Logger, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code != domain.ErrCodeInternal {
		return Respond(c, de.Code, de.Message)
	}
	return InternalError(c, log, err)
}
