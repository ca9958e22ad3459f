package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"opsboard/internal/core"
	"opsboard/internal/logger"
)

// Response is a standard API response wrapper.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error represents an API error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeWeakPassword     = "WEAK_PASSWORD"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

var (
	ErrUnauthorized = &Error{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
		Status:  http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:    ErrCodeForbidden,
		Message: "Access denied",
		Status:  http.StatusForbidden,
	}

	ErrInternalServer = &Error{
		Code:    ErrCodeInternalError,
		Message: "Internal server error",
		Status:  http.StatusInternalServerError,
	}

	ErrRateLimited = &Error{
		Code:    ErrCodeRateLimited,
		Message: "Too many requests",
		Status:  http.StatusTooManyRequests,
	}
)

func badRequest(msg string) *Error {
	return &Error{Code: ErrCodeBadRequest, Message: msg, Status: http.StatusBadRequest}
}

func notFound(msg string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: msg, Status: http.StatusNotFound}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

// JSONError writes a JSON error response.
func JSONError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(Response{Error: err})
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps a service error onto an HTTP response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid *core.InvalidInputError
		weak    *core.WeakPasswordError
		apiErr  *Error
	)
	switch {
	case errors.As(err, &apiErr):
		JSONError(w, apiErr)
	case errors.As(err, &invalid):
		JSONError(w, &Error{Code: ErrCodeValidationFailed, Message: invalid.Reason, Status: http.StatusBadRequest})
	case errors.As(err, &weak):
		JSONError(w, &Error{Code: ErrCodeWeakPassword, Message: weak.Reason, Status: http.StatusBadRequest})
	case errors.Is(err, core.ErrDuplicateUsername):
		JSONError(w, &Error{Code: ErrCodeConflict, Message: "Username already exists", Status: http.StatusConflict})
	case errors.Is(err, core.ErrNotFound):
		JSONError(w, notFound(err.Error()))
	case errors.Is(err, core.ErrInvalidCredentials):
		JSONError(w, &Error{Code: ErrCodeUnauthorized, Message: "Incorrect password", Status: http.StatusUnauthorized})
	case errors.Is(err, core.ErrStore):
		// already logged with detail by the service
		JSONError(w, &Error{Code: ErrCodeStoreUnavailable, Message: err.Error(), Status: http.StatusInternalServerError})
	default:
		logger.Error.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		JSONError(w, ErrInternalServer)
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequest("Request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("Invalid JSON body: " + err.Error())
	}
	return nil
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid id")
	}
	return id, nil
}
