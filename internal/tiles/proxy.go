// Package tiles proxies map tile requests to the provider using the key
// carried by the verified token scope.
package tiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

const (
	// MaxZoom is the deepest zoom level the provider serves.
	MaxZoom = 22

	// DefaultStyle is used when a request names no style.
	DefaultStyle = "streets-v12"

	// CacheControl lets browsers and intermediaries keep tiles for a day.
	CacheControl = "public, max-age=86400"
)

// styles maps the display names offered in the widget settings to provider
// style ids. Ids are accepted as-is.
var styles = map[string]string{
	"Streets":           "streets-v12",
	"Outdoors":          "outdoors-v12",
	"Light":             "light-v11",
	"Dark":              "dark-v11",
	"Satellite":         "satellite-v9",
	"Satellite Streets": "satellite-streets-v12",
}

var styleIDs = func() map[string]bool {
	ids := make(map[string]bool, len(styles))
	for _, id := range styles {
		ids[id] = true
	}
	return ids
}()

// ResolveStyle maps a display name or style id to a provider style id.
// Unknown names are rejected rather than forwarded into the upstream URL.
func ResolveStyle(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultStyle, nil
	}
	if id, ok := styles[name]; ok {
		return id, nil
	}
	if styleIDs[name] {
		return name, nil
	}
	return "", domain.Malformed("unknown map style %q", name)
}

// ValidateCoordinates checks that x and y address a tile at zoom z.
func ValidateCoordinates(z, x, y int) error {
	if z < 0 || z > MaxZoom {
		return domain.Malformed("zoom %d out of range [0,%d]", z, MaxZoom)
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return domain.Malformed("tile %d/%d out of range for zoom %d", x, y, z)
	}
	return nil
}

// Proxy fetches tiles on behalf of embedded widgets.
type Proxy struct {
	fetcher domain.TileFetcher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewProxy creates a tile proxy.
func NewProxy(fetcher domain.TileFetcher, metrics *observability.Metrics, logger *slog.Logger) *Proxy {
	return &Proxy{fetcher: fetcher, metrics: metrics, logger: logger}
}

// FetchTile validates the request and returns the upstream tile unchanged.
// Upstream failures keep their status code in a *domain.UpstreamError.
func (p *Proxy) FetchTile(ctx context.Context, z, x, y int, style string, scope domain.Scope) (domain.Tile, error) {
	if err := ValidateCoordinates(z, x, y); err != nil {
		p.metrics.TileRequests.WithLabelValues("rejected").Inc()
		return domain.Tile{}, err
	}
	styleID, err := ResolveStyle(style)
	if err != nil {
		p.metrics.TileRequests.WithLabelValues("rejected").Inc()
		return domain.Tile{}, err
	}
	if scope.MapboxKey == "" {
		p.metrics.TileRequests.WithLabelValues("rejected").Inc()
		return domain.Tile{}, domain.ErrMissingUpstreamConfig
	}

	tile, err := p.fetcher.FetchTile(ctx, scope.MapboxKey, domain.TileRequest{Z: z, X: x, Y: y, Style: styleID})
	if err != nil {
		p.metrics.TileRequests.WithLabelValues("upstream_error").Inc()
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) {
			p.logger.WarnContext(ctx, "tile fetch failed",
				"site_id", scope.SiteID,
				"status", upErr.StatusCode,
				"style", styleID,
				"z", z, "x", x, "y", y,
			)
		}
		return domain.Tile{}, err
	}
	p.metrics.TileRequests.WithLabelValues("success").Inc()
	return tile, nil
}
