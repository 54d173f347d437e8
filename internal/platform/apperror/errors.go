// Package apperror defines the error taxonomy shared by all domain services
// and the echo error handler that maps it to HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks authorization for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the entity changed underneath the caller; the
	// request should be retried after reloading.
	ErrConflict = errors.New("conflict: the record was already updated, please reload")
)

// IllegalTransitionError reports a status transition not present in the
// legal-transition table.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %q to %q", e.From, e.To)
}

// FieldError describes a single violated validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError batches every violated rule so the caller can report all
// problems in one response instead of fixing them one at a time.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d error(s)", len(e.Errors))
}

// Add appends a field error. Returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
	return e
}

// HasErrors reports whether any rule was violated.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// OrNil returns the error when rules were violated, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// HTTPErrorHandler maps the taxonomy to HTTP status codes: validation 422,
// forbidden 403, not found 404, illegal transition and conflict 409.
// Anything else falls through to echo's default handling.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *ValidationError
		var it *IllegalTransitionError

		switch {
		case errors.As(err, &ve):
			_ = c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  "validation failed",
				"fields": ve.Errors,
			})
		case errors.As(err, &it):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": it.Error()})
		case errors.Is(err, ErrConflict):
			_ = c.JSON(http.StatusConflict, map[string]string{"error": ErrConflict.Error()})
		case errors.Is(err, ErrForbidden):
			_ = c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		case errors.Is(err, ErrNotFound):
			_ = c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		default:
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				_ = c.JSON(httpErr.Code, map[string]interface{}{"error": httpErr.Message})
				return
			}
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
			_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
	}
}
