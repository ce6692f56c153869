package types

import (
	"errors"
	"net/http"

	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

// FromAppError converts err into the wire error. Internal failures hide
// their cause.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		if e.Code == appErr.CodeInternal {
			return &APIError{Code: string(e.Code), Message: e.Message}
		}
		return &APIError{Code: string(e.Code), Message: e.Message, Meta: e.Meta}
	}
	return &APIError{Code: string(appErr.CodeInternal), Message: "internal error"}
}

// StatusFor maps an error code onto its HTTP status.
func StatusFor(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid, appErr.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeConflict:
		return http.StatusConflict
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
