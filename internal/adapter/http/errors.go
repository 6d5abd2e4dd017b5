package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/store-locator/internal/domain"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// statusFor maps the error taxonomy onto HTTP status codes. Upstream
// failures keep the provider's status; a failure with no response at all
// is a 500.
func statusFor(err error) (int, string) {
	var upErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrMissingToken),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrMissingUpstreamConfig):
		return http.StatusNotFound, "not_configured"
	case errors.As(err, &upErr):
		if upErr.StatusCode >= 400 && upErr.StatusCode <= 599 {
			return upErr.StatusCode, "upstream_error"
		}
		return http.StatusInternalServerError, "upstream_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// descriptions are the caller-facing messages. Internal error text stays in
// the logs since it may name upstream URLs or credentials.
var descriptions = map[string]string{
	"invalid_request": "",
	"unauthorized":    "Missing, invalid or expired token",
	"not_configured":  "Provider credentials are not configured for this site",
	"upstream_error":  "Upstream provider request failed",
	"not_found":       "Resource not found",
	"internal_error":  "Internal server error",
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	desc := descriptions[code]
	if code == "invalid_request" {
		desc = err.Error()
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	writeJSON(w, status, errorBody{Error: code, Description: desc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
