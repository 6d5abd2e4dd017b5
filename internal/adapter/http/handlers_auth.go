package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

// TokenIssuer mints capability tokens.
type TokenIssuer interface {
	Issue(siteID, collectionID, mapboxKey string, ttl time.Duration) (string, error)
}

// SiteDirectory looks up operator site configuration.
type SiteDirectory interface {
	Site(ctx context.Context, siteID string) (domain.Site, error)
}

// TokenHandler serves token issuance for authenticated operators.
type TokenHandler struct {
	issuer  TokenIssuer
	sites   SiteDirectory
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTokenHandler creates the issuance handler.
func NewTokenHandler(issuer TokenIssuer, sites SiteDirectory, metrics *observability.Metrics, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, sites: sites, metrics: metrics, logger: logger}
}

type generateTokenRequest struct {
	SiteID       string `json:"siteId"`
	CollectionID string `json:"collectionId"`
}

type generateTokenResponse struct {
	Token string `json:"token"`
}

// handleGenerate issues a token for the site's Mapbox key. An empty
// collectionId falls back to the site's configured collection.
func (h *TokenHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.SiteID == "" {
		writeError(w, r, h.logger, domain.Malformed("siteId is required"))
		return
	}

	site, err := h.sites.Site(r.Context(), req.SiteID)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("look up site: %w", err))
		return
	}
	collectionID := req.CollectionID
	if collectionID == "" {
		collectionID = site.CollectionID
	}
	if collectionID == "" {
		writeError(w, r, h.logger, domain.Malformed("collectionId is required"))
		return
	}

	tok, err := h.issuer.Issue(site.ID, collectionID, site.MapboxKey, 0)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("issue token for site %s: %w", site.ID, err))
		return
	}

	h.metrics.TokensIssued.Inc()
	h.logger.InfoContext(r.Context(), "token issued", "site_id", site.ID, "collection_id", collectionID)
	writeJSON(w, http.StatusOK, generateTokenResponse{Token: tok})
}
