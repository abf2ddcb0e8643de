package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error      string `json:"error"`                 // Machine-readable error code
	Message    string `json:"message"`               // Human-readable message
	RetryAfter *int64 `json:"retry_after,omitempty"` // Seconds until retry is worthwhile
}

// deniedMessage is the single ambiguous denial text used for IP bans, rate
// limits, and account locks alike. Differentiating the cause would let an
// observer probe which accounts exist and which defenses fired.
const deniedMessage = "Too many attempts. Please try again later."

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteDenied writes the unified protection denial: HTTP 429 with a
// Retry-After header and a numeric retry hint in the body. retryAfter is
// rounded to whole seconds and never negative.
func WriteDenied(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int64(retryAfter.Round(time.Second) / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	w.WriteHeader(http.StatusTooManyRequests)

	resp := ErrorResponse{
		Error:      "too_many_requests",
		Message:    deniedMessage,
		RetryAfter: &seconds,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
