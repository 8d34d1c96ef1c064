package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-social/internal/database"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(statusCode int, message string) *ApiError {
	if message == "" {
		message = lower(http.StatusText(statusCode))
	}

	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, "")
}

// NewBadRequestErrorMessage is a 400 with a caller-facing explanation.
func NewBadRequestErrorMessage(message string) *ApiError {
	return newApiError(http.StatusBadRequest, message)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, "")
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError, "")
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, "")
}

func NewUnauthorizedErrorMessage(message string) *ApiError {
	return newApiError(http.StatusUnauthorized, message)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, "")
}

func NewConflictError(message string) *ApiError {
	return newApiError(http.StatusConflict, message)
}

func NewRequestEntityTooLargeError() *ApiError {
	return newApiError(http.StatusRequestEntityTooLarge, "")
}

func NewMethodNotAllowedError() *ApiError {
	return newApiError(http.StatusMethodNotAllowed, "")
}

// dbError maps a repository error to its response: missing rows become
// 404, everything else 500.
func dbError(err error) *ApiError {
	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError()
	}
	return NewInternalServerError(err)
}

// writeError logs server-side failures before writing e.
func (s *SocialApp) writeError(w http.ResponseWriter, e *ApiError) {
	if e.StatusCode >= http.StatusInternalServerError && s.log != nil {
		s.log.Println(e.Error())
	}
	s.writeJson(w, e.StatusCode, e)
}

func isDuplicate(err error) bool {
	return errors.Is(err, database.ErrDuplicate)
}
