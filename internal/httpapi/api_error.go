package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/John-Robertt/subprobe-go/internal/model"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func requestAppError(code, message, hint string) model.AppError {
	return model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}
}

func notFound(message string) model.AppError {
	return model.AppError{Code: "NOT_FOUND", Message: message, Stage: "serve"}
}

// writeError writes e and counts it.
func (h *handlers) writeError(w http.ResponseWriter, status int, e model.AppError) {
	h.opt.Metrics.incAppError(e.Stage, e.Code)
	WriteError(w, status, e)
}

func (h *handlers) writeErrorFromErr(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var ae *APIError
	if errors.As(err, &ae) {
		h.writeError(w, ae.Status, ae.AppError)
		return
	}

	// Fallback: internal bug.
	h.writeError(w, http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
		Stage:   "internal",
		Hint:    err.Error(),
	})
}
