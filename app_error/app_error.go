package app_error

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type statusError struct {
	error
	status int
}

func (e statusError) Unwrap() error {
	return e.error
}

func (e statusError) HTTPStatus() int {
	return e.status
}

func withStatus(status int, format string, args ...any) error {
	return statusError{error: fmt.Errorf(format, args...), status: status}
}

// BadRequest marks a rejected request (invalid input, disallowed
// lifecycle state).
func BadRequest(format string, args ...any) error {
	return withStatus(http.StatusBadRequest, format, args...)
}

// Forbidden marks a caller that lacks the required role or does not
// own the resource.
func Forbidden(format string, args ...any) error {
	return withStatus(http.StatusForbidden, format, args...)
}

// NotFound is distinct from Forbidden so callers can tell "doesn't
// exist" from "not yours".
func NotFound(format string, args ...any) error {
	return withStatus(http.StatusNotFound, format, args...)
}

// Conflict marks duplicate-creation attempts (e.g. an assignment that
// already exists).
func Conflict(format string, args ...any) error {
	return withStatus(http.StatusConflict, format, args...)
}

// Unavailable marks a retryable upstream failure. Nothing was
// persisted; the caller may re-invoke.
func Unavailable(format string, args ...any) error {
	return withStatus(http.StatusBadGateway, format, args...)
}

// HTTPStatus returns the status carried by err, or 500 for plain errors.
func HTTPStatus(err error) int {
	var se statusError
	if errors.As(err, &se) {
		return se.status
	}
	return http.StatusInternalServerError
}

func Abort(c *gin.Context, err error) {
	c.JSON(HTTPStatus(err), gin.H{"error": err.Error()})
}
