// Package api provides RFC 7807 Problem Detail error responses and the gateway's
// HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://veilstone.dev/fhegate/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteUnauthorized writes a 401 error response.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Insufficient permissions"
	}
	WriteError(w, http.StatusForbidden, "Forbidden", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but NEVER exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteTaxonomyError maps a protocol taxonomy error onto its HTTP shape.
// Every kind keeps its identity in the response title so calling layers
// can decide retry vs. abort without parsing detail strings.
func WriteTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrNotAuthorized):
		WriteError(w, http.StatusForbidden, "Not Authorized", err.Error())
	case errors.Is(err, contracts.ErrServiceSuspended):
		WriteError(w, http.StatusServiceUnavailable, "Service Suspended", err.Error())
	case errors.Is(err, contracts.ErrCooldownActive):
		WriteError(w, http.StatusTooManyRequests, "Cooldown Active", err.Error())
	case errors.Is(err, contracts.ErrBatchNotActive):
		WriteError(w, http.StatusConflict, "Batch Not Active", err.Error())
	case errors.Is(err, contracts.ErrUnknownRequest):
		WriteError(w, http.StatusNotFound, "Unknown Request", err.Error())
	case errors.Is(err, contracts.ErrReplayAttempt):
		WriteError(w, http.StatusConflict, "Replay Attempt", err.Error())
	case errors.Is(err, contracts.ErrStateMismatch):
		WriteError(w, http.StatusUnprocessableEntity, "State Mismatch", err.Error())
	case errors.Is(err, contracts.ErrInvalidProof):
		WriteError(w, http.StatusForbidden, "Invalid Proof", err.Error())
	default:
		WriteInternal(w, err)
	}
}
