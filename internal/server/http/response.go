package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/resilience"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeDomainError maps the service error taxonomy to HTTP statuses and
// user-facing guidance. Not-found and rate-limit conditions carry enough
// context for the caller to act on them.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var notFoundErr *domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: notFoundErr.Error(),
			Detail: fmt.Sprintf("No %s matched the given identifier. "+
				"Verify the ID, or search first to discover valid identifiers.", notFoundErr.Entity),
		})
		return
	}

	var rateLimitErr *domain.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if rateLimitErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitErr.RetryAfter.Seconds())))
		}
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:  "upstream rate limit exceeded",
			Detail: "Retries were exhausted. Wait before issuing further requests.",
		})
		return
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:  "upstream temporarily unavailable",
			Detail: "The circuit breaker is open after repeated upstream failures. Retry shortly.",
		})
		return
	}

	if errors.Is(err, domain.ErrAuthenticationFailed) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:  "upstream authentication failed",
			Detail: "Check the configured Semantic Scholar API key.",
		})
		return
	}

	if errors.Is(err, domain.ErrServerError) || errors.Is(err, domain.ErrConnectivity) {
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, apiErr.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, "internal error")
}
