// Package geocode fills in missing location coordinates. Lookups fan out one
// provider call per location under a concurrency cap, and a failed lookup
// only leaves its own location unresolved.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/store-locator/internal/cache"
	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

// Publisher receives an event for every fresh successful resolution of a
// location read from the CMS.
type Publisher interface {
	PublishGeocoded(ctx context.Context, events []domain.GeocodeEvent) error
}

// Request is one address to resolve. ID is opaque and joins the result back
// to its location, so two locations sharing an address stay distinct.
type Request struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Result is a resolved request.
type Result struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Config tunes the resolver.
type Config struct {
	// CacheTTL is how long a per-location coordinate is kept.
	CacheTTL time.Duration
	// Concurrency caps in-flight provider calls per batch.
	Concurrency int
}

// Resolver is the geocode cache and batcher.
type Resolver struct {
	geocoder  domain.Geocoder
	store     cache.Store
	cfg       Config
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures optional Resolver collaborators.
type Option func(*Resolver)

// WithPublisher emits geocode events after fresh lookups.
func WithPublisher(p Publisher) Option {
	return func(r *Resolver) { r.publisher = p }
}

// NewResolver creates a resolver backed by geocoder and store.
func NewResolver(geocoder domain.Geocoder, store cache.Store, cfg Config, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Resolver {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	r := &Resolver{
		geocoder: geocoder,
		store:    store,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a copy of locs with coordinates filled in where the address
// could be resolved. Locations that already carry a coordinate are untouched.
func (r *Resolver) Resolve(ctx context.Context, scope domain.Scope, locs []domain.Location) []domain.Location {
	out := make([]domain.Location, len(locs))
	copy(out, locs)

	var (
		reqs []Request
		idx  []int
	)
	for i, loc := range out {
		if loc.Coordinate.IsResolved() || loc.Address == "" {
			continue
		}
		reqs = append(reqs, Request{ID: loc.ID, Address: loc.Address})
		idx = append(idx, i)
	}
	if len(reqs) == 0 {
		return out
	}

	coords := r.resolve(ctx, scope, reqs, "batch", true)
	for j, c := range coords {
		out[idx[j]].Coordinate = c
	}
	return out
}

// ResolveBatch resolves each request independently. Failed lookups are
// absent from the result; order follows the input. Ids and addresses come
// from the caller, so no geocode events are published for them.
func (r *Resolver) ResolveBatch(ctx context.Context, scope domain.Scope, reqs []Request) []Result {
	coords := r.resolve(ctx, scope, reqs, "batch", false)
	results := make([]Result, 0, len(reqs))
	for i, c := range coords {
		lat, lon, ok := c.LatLon()
		if !ok {
			continue
		}
		results = append(results, Result{ID: reqs[i].ID, Latitude: lat, Longitude: lon})
	}
	return results
}

// ResolveOne geocodes a single free-text address. It is not cached.
func (r *Resolver) ResolveOne(ctx context.Context, scope domain.Scope, address string) (domain.Coordinate, error) {
	if address == "" {
		return domain.Unresolved(), domain.Malformed("address is required")
	}
	if scope.MapboxKey == "" {
		return domain.Unresolved(), domain.ErrMissingUpstreamConfig
	}
	c, err := r.geocoder.Forward(ctx, scope.MapboxKey, address)
	r.countRequest("single", c, err)
	if err != nil {
		return domain.Unresolved(), err
	}
	return c, nil
}

// Search returns the provider's feature collection for a free-text query
// unchanged. The first feature's center is the coordinate of record.
func (r *Resolver) Search(ctx context.Context, scope domain.Scope, query string) ([]byte, error) {
	if query == "" {
		return nil, domain.Malformed("address is required")
	}
	if scope.MapboxKey == "" {
		return nil, domain.ErrMissingUpstreamConfig
	}
	body, err := r.geocoder.Search(ctx, scope.MapboxKey, query)
	if err != nil {
		r.metrics.GeocodeRequests.WithLabelValues("search", "error").Inc()
		return nil, err
	}
	r.metrics.GeocodeRequests.WithLabelValues("search", "success").Inc()
	return body, nil
}

// resolve returns one coordinate per request, by position. publish is set
// only when reqs were read from the CMS.
func (r *Resolver) resolve(ctx context.Context, scope domain.Scope, reqs []Request, method string, publish bool) []domain.Coordinate {
	coords := make([]domain.Coordinate, len(reqs))
	if len(reqs) == 0 {
		return coords
	}
	if scope.MapboxKey == "" {
		r.logger.WarnContext(ctx, "geocoding skipped, no mapbox key in scope",
			"site_id", scope.SiteID,
			"locations", len(reqs),
		)
		return coords
	}

	fresh := make([]bool, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, req := range reqs {
		if c, ok := r.cached(gctx, scope, req); ok {
			coords[i] = c
			continue
		}
		g.Go(func() error {
			c, err := r.geocoder.Forward(gctx, scope.MapboxKey, req.Address)
			r.countRequest(method, c, err)
			if err != nil {
				r.logger.WarnContext(gctx, "geocode lookup failed",
					"site_id", scope.SiteID,
					"location_id", req.ID,
					"error", err,
				)
				return nil
			}
			coords[i] = c
			fresh[i] = true
			return nil
		})
	}
	// Goroutines never return an error; a failure stays local to its location.
	_ = g.Wait()

	r.remember(ctx, scope, reqs, coords, fresh, publish)
	return coords
}

func (r *Resolver) countRequest(method string, c domain.Coordinate, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
	case err != nil:
		r.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
	case c.IsResolved():
		r.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	}
}

// entry is the per-location cache record. A stored address that no longer
// matches the location's address makes the entry stale.
type entry struct {
	LocationID string    `json:"locationId"`
	Address    string    `json:"address"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CachedAt   time.Time `json:"cachedAt"`
}

func entryKey(siteID, locationID string) string {
	return fmt.Sprintf("geocode:%s:%s", siteID, locationID)
}

func (r *Resolver) cached(ctx context.Context, scope domain.Scope, req Request) (domain.Coordinate, bool) {
	if req.ID == "" {
		return domain.Unresolved(), false
	}
	data, ok, err := r.store.Get(ctx, entryKey(scope.SiteID, req.ID))
	if err != nil {
		r.logger.WarnContext(ctx, "geocode cache read failed", "location_id", req.ID, "error", err)
	}
	if !ok || err != nil {
		r.metrics.GeocodeCache.WithLabelValues("location", "miss").Inc()
		return domain.Unresolved(), false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Address != req.Address {
		r.metrics.GeocodeCache.WithLabelValues("location", "miss").Inc()
		return domain.Unresolved(), false
	}
	r.metrics.GeocodeCache.WithLabelValues("location", "hit").Inc()
	return domain.Resolved(e.Latitude, e.Longitude), true
}

// remember caches fresh successes and, when publish is set, publishes them
// as events.
func (r *Resolver) remember(ctx context.Context, scope domain.Scope, reqs []Request, coords []domain.Coordinate, fresh []bool, publish bool) {
	now := domain.Clock().Now().UTC()
	var events []domain.GeocodeEvent
	for i, req := range reqs {
		if !fresh[i] {
			continue
		}
		lat, lon, _ := coords[i].LatLon()
		if req.ID != "" {
			data, err := json.Marshal(entry{
				LocationID: req.ID,
				Address:    req.Address,
				Latitude:   lat,
				Longitude:  lon,
				CachedAt:   now,
			})
			if err == nil {
				err = r.store.Set(ctx, entryKey(scope.SiteID, req.ID), data, r.cfg.CacheTTL)
			}
			if err != nil {
				r.logger.WarnContext(ctx, "geocode cache write failed", "location_id", req.ID, "error", err)
			}
		}
		if !publish {
			continue
		}
		events = append(events, domain.GeocodeEvent{
			SiteID:       scope.SiteID,
			CollectionID: scope.CollectionID,
			LocationID:   req.ID,
			Address:      req.Address,
			Latitude:     lat,
			Longitude:    lon,
			GeocodedAt:   now,
		})
	}

	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.PublishGeocoded(ctx, events); err != nil {
		r.metrics.GeocodeEvents.WithLabelValues("error").Add(float64(len(events)))
		r.logger.ErrorContext(ctx, "publish geocode events", "count", len(events), "error", err)
		return
	}
	r.metrics.GeocodeEvents.WithLabelValues("published").Add(float64(len(events)))
}
