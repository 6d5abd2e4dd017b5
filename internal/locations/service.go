// Package locations serves the store list for an embedded widget: items are
// read from the site's CMS collection, coordinates are filled in, and the
// resolved list is cached per collection.
package locations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/store-locator/internal/cache"
	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

// Resolver fills in missing coordinates.
type Resolver interface {
	Resolve(ctx context.Context, scope domain.Scope, locs []domain.Location) []domain.Location
}

// Service is the collection read path.
type Service struct {
	sites    domain.SiteStore
	source   domain.CollectionSource
	resolver Resolver
	store    cache.Store
	ttl      time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService creates a locations service. ttl bounds how long a resolved
// collection is served from cache.
func NewService(
	sites domain.SiteStore,
	source domain.CollectionSource,
	resolver Resolver,
	store cache.Store,
	ttl time.Duration,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sites:    sites,
		source:   source,
		resolver: resolver,
		store:    store,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
	}
}

// CacheKey is the collection tier key.
func CacheKey(collectionID string) string {
	return "locations:" + collectionID
}

// List returns the collection's locations with coordinates resolved where
// possible.
func (s *Service) List(ctx context.Context, scope domain.Scope) ([]domain.Location, error) {
	if scope.SiteID == "" || scope.CollectionID == "" {
		return nil, domain.Malformed("scope needs a site and collection")
	}

	key := CacheKey(scope.CollectionID)
	if locs, ok := s.cached(ctx, key); ok {
		return locs, nil
	}

	site, err := s.sites.Site(ctx, scope.SiteID)
	if err != nil {
		return nil, fmt.Errorf("load site: %w", err)
	}
	if site.CMSAccessToken == "" {
		return nil, fmt.Errorf("site %s has no CMS token: %w", scope.SiteID, domain.ErrMissingUpstreamConfig)
	}

	items, err := s.source.ListItems(ctx, site.CMSAccessToken, scope.CollectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}

	locs := s.resolver.Resolve(ctx, scope, items)
	if locs == nil {
		locs = []domain.Location{}
	}

	data, err := cache.EncodeItems(locs)
	if err == nil {
		err = s.store.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "collection cache write failed", "collection_id", scope.CollectionID, "error", err)
	}
	return locs, nil
}

// cached reads the collection tier. Unreadable entries count as a miss and
// are overwritten on the next successful read.
func (s *Service) cached(ctx context.Context, key string) ([]domain.Location, bool) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "collection cache read failed", "key", key, "error", err)
	}
	if err != nil || !ok {
		s.metrics.GeocodeCache.WithLabelValues("collection", "miss").Inc()
		return nil, false
	}

	locs, err := cache.DecodeItems[domain.Location](data)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable collection cache entry", "key", key, "error", err)
		s.metrics.GeocodeCache.WithLabelValues("collection", "miss").Inc()
		return nil, false
	}
	s.metrics.GeocodeCache.WithLabelValues("collection", "hit").Inc()
	return locs, true
}
