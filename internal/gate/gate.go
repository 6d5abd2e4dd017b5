// Package gate guards the embed-facing API routes. A request to a protected
// path must present a capability token; the verified scope is attached to the
// request context so handlers never parse the token again.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
	"github.com/couchcryptid/store-locator/internal/token"
)

// Verifier decodes and verifies a capability token.
type Verifier interface {
	Decode(tokenString string) (token.Payload, error)
}

type contextKeyScope struct{}

// WithScope returns a copy of ctx carrying the authorized scope.
func WithScope(ctx context.Context, scope domain.Scope) context.Context {
	return context.WithValue(ctx, contextKeyScope{}, scope)
}

// ScopeFromContext returns the scope attached by the gate.
func ScopeFromContext(ctx context.Context) (domain.Scope, bool) {
	scope, ok := ctx.Value(contextKeyScope{}).(domain.Scope)
	return scope, ok
}

// Gate is the token-checking middleware.
type Gate struct {
	verifier  Verifier
	protected *regexp.Regexp
	tiles     *regexp.Regexp
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New builds a gate for routes mounted under basePath (e.g. "" or "/map").
// Location reads, geocoding and tile fetches are protected; every other path
// passes through untouched.
func New(basePath string, verifier Verifier, metrics *observability.Metrics, logger *slog.Logger) *Gate {
	base := regexp.QuoteMeta(strings.TrimSuffix(basePath, "/"))
	return &Gate{
		verifier:  verifier,
		protected: regexp.MustCompile(fmt.Sprintf(`^%s/api/(locations|geocode|maps/tiles)(/|$)`, base)),
		tiles:     regexp.MustCompile(fmt.Sprintf(`^%s/api/maps/tiles/`, base)),
		metrics:   metrics,
		logger:    logger,
	}
}

// Protects reports whether path requires a token.
func (g *Gate) Protects(path string) bool {
	return g.protected.MatchString(path)
}

// Middleware rejects protected requests that lack a valid token with 401.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		payload, err := g.authenticate(r)
		if err != nil {
			outcome := outcomeOf(err)
			g.metrics.TokenVerifications.WithLabelValues(outcome).Inc()
			g.logger.WarnContext(r.Context(), "unauthorized request",
				"outcome", outcome,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
			writeUnauthorized(w)
			return
		}

		g.metrics.TokenVerifications.WithLabelValues("ok").Inc()
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), payload.Scope)))
	})
}

func (g *Gate) authenticate(r *http.Request) (token.Payload, error) {
	tokenString := g.extract(r)
	if tokenString == "" {
		return token.Payload{}, domain.ErrMissingToken
	}
	return g.verifier.Decode(tokenString)
}

// extract reads the bearer header, falling back to the token query parameter
// on tile routes only, since image loads cannot set headers.
func (g *Gate) extract(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if t := strings.TrimSpace(after); t != "" {
			return t
		}
	}
	if g.tiles.MatchString(r.URL.Path) {
		return r.URL.Query().Get("token")
	}
	return ""
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		return "missing"
	case errors.Is(err, domain.ErrExpiredToken):
		return "expired"
	default:
		return "invalid"
	}
}

// writeUnauthorized sends the same body for every token failure so callers
// cannot tell a forged token from an expired one.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Missing, invalid or expired token"}`))
}
