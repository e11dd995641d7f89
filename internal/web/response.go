package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
)

// ErrorDetail represents a single error detail in RFC 7807 Problem Details
type ErrorDetail struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details error response
type ProblemDetails struct {
	Type     string        `json:"type,omitempty"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

// DataResponse wraps a single data object in a consistent response format
type DataResponse struct {
	Data any `json:"data"`
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, statusCode int, title string, detail string, details ...ErrorDetail) {
	problem := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: statusCode,
		Detail: detail,
		Errors: details,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// RespondSuccess wraps a single object in a {"data": ...} structure
func RespondSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(DataResponse{Data: data}); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// statusFor maps an error class to an HTTP status and problem title.
func statusFor(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "Request Entity Too Large"
	case errors.Is(err, peelerrors.ErrValidation):
		return http.StatusBadRequest, "Bad Request"
	case errors.Is(err, peelerrors.ErrConfig):
		return http.StatusServiceUnavailable, "Service Unavailable"
	case errors.Is(err, peelerrors.ErrUpstream):
		return http.StatusBadGateway, "Bad Gateway"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// userMessage is peelerrors.UserMessage plus the transport errors this package adds.
func userMessage(err error) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return "request body exceeds maximum allowed size"
	}
	return peelerrors.UserMessage(err)
}

// respondErr writes err as a problem document. Causes of upstream failures are
// logged, never sent.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, title := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}

	var details []ErrorDetail
	var vErr *peelerrors.ValidationError
	if errors.As(err, &vErr) && vErr.Field != "" {
		details = append(details, ErrorDetail{Location: vErr.Field, Message: vErr.Error()})
	}

	RespondError(w, status, title, userMessage(err), details...)
}
