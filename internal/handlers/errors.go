package handlers

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every JSON error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Error codes
const (
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

var (
	ErrStoreUnavailable = &Error{
		Code:    ErrCodeStoreUnavailable,
		Message: "Pending package count is unavailable",
		Status:  http.StatusInternalServerError,
	}

	ErrMethodNotAllowed = &Error{
		Code:    ErrCodeMethodNotAllowed,
		Message: "Method not allowed",
		Status:  http.StatusMethodNotAllowed,
	}
)

type errorResponse struct {
	Error *Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *Error) {
	writeJSON(w, err.Status, errorResponse{Error: err})
}
