package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/gate"
	"github.com/couchcryptid/store-locator/internal/geocode"
	"github.com/couchcryptid/store-locator/internal/tiles"
)

const (
	maxBodyBytes = 1 << 20
	// maxBatchSize bounds one geocode request; a widget sends one page of
	// its collection at a time.
	maxBatchSize = 1000
)

// LocationLister returns a collection's resolved locations.
type LocationLister interface {
	List(ctx context.Context, scope domain.Scope) ([]domain.Location, error)
}

// GeocodeService resolves addresses for the scope's site.
type GeocodeService interface {
	ResolveBatch(ctx context.Context, scope domain.Scope, reqs []geocode.Request) []geocode.Result
	Search(ctx context.Context, scope domain.Scope, query string) ([]byte, error)
}

// TileService proxies map tiles.
type TileService interface {
	FetchTile(ctx context.Context, z, x, y int, style string, scope domain.Scope) (domain.Tile, error)
}

// API serves the token-protected widget routes. Handlers read the scope
// the gate attached to the request context.
type API struct {
	locations LocationLister
	geocoder  GeocodeService
	tiles     TileService
	logger    *slog.Logger
}

// NewAPI creates the widget API handlers.
func NewAPI(locations LocationLister, geocoder GeocodeService, tiles TileService, logger *slog.Logger) *API {
	return &API{locations: locations, geocoder: geocoder, tiles: tiles, logger: logger}
}

// scope returns the verified scope. Its absence means the route was mounted
// outside the gate, which is a wiring bug rather than a client error.
func (a *API) scope(w http.ResponseWriter, r *http.Request) (domain.Scope, bool) {
	scope, ok := gate.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, r, a.logger, errors.New("route reached without a verified scope"))
	}
	return scope, ok
}

func (a *API) handleLocations(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(w, r)
	if !ok {
		return
	}
	locs, err := a.locations.List(r.Context(), scope)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

type geocodeBatchRequest struct {
	Locations []geocode.Request `json:"locations"`
}

type geocodeBatchResponse struct {
	GeocodedLocations []geocode.Result `json:"geocodedLocations"`
}

func (a *API) handleGeocodeBatch(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(w, r)
	if !ok {
		return
	}

	var req geocodeBatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := validateBatch(req.Locations); err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	results := a.geocoder.ResolveBatch(r.Context(), scope, req.Locations)
	writeJSON(w, http.StatusOK, geocodeBatchResponse{GeocodedLocations: results})
}

func validateBatch(reqs []geocode.Request) error {
	if len(reqs) == 0 {
		return domain.Malformed("locations are required")
	}
	if len(reqs) > maxBatchSize {
		return domain.Malformed("at most %d locations per request", maxBatchSize)
	}
	for i, req := range reqs {
		if req.ID == "" {
			return domain.Malformed("locations[%d]: id is required", i)
		}
		if req.Address == "" {
			return domain.Malformed("locations[%d]: address is required", i)
		}
	}
	return nil
}

func (a *API) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(w, r)
	if !ok {
		return
	}
	body, err := a.geocoder.Search(r.Context(), scope, r.URL.Query().Get("address"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleTile(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.scope(w, r)
	if !ok {
		return
	}

	var coords [3]int
	for i, name := range []string{"z", "x", "y"} {
		n, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			writeError(w, r, a.logger, domain.Malformed("tile %s must be an integer", name))
			return
		}
		coords[i] = n
	}

	tile, err := a.tiles.FetchTile(r.Context(), coords[0], coords[1], coords[2], r.URL.Query().Get("style"), scope)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	contentType := tile.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", tiles.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(tile.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tile.Data)
}

// decodeBody reads a single JSON object, rejecting oversized and unknown
// shapes as malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrMalformedRequest, err)
	}
	return nil
}
