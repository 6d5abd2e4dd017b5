package domain

import (
	"context"
	"time"
)

// Geocoder resolves free-text addresses with an external provider. The access
// key is supplied per call because every site carries its own.
type Geocoder interface {
	// Forward returns the coordinate of the best match, or ErrNotFound.
	Forward(ctx context.Context, accessKey, address string) (Coordinate, error)

	// Search returns the provider's feature collection unchanged.
	Search(ctx context.Context, accessKey, query string) ([]byte, error)
}

// TileRequest addresses one map tile.
type TileRequest struct {
	Z, X, Y int
	Style   string
}

// Tile is an upstream tile image, passed through unchanged.
type Tile struct {
	Data        []byte
	ContentType string
}

// TileFetcher loads map tiles from the provider.
type TileFetcher interface {
	FetchTile(ctx context.Context, accessKey string, req TileRequest) (Tile, error)
}

// CollectionSource lists the items of one CMS collection.
type CollectionSource interface {
	ListItems(ctx context.Context, accessToken, collectionID string) ([]Location, error)
}

// SiteStore looks up operator configuration. Returns ErrNotFound for unknown sites.
type SiteStore interface {
	Site(ctx context.Context, siteID string) (Site, error)
}

// GeocodeEvent records a successful address resolution for one location.
type GeocodeEvent struct {
	SiteID       string    `json:"siteId"`
	CollectionID string    `json:"collectionId"`
	LocationID   string    `json:"locationId"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	GeocodedAt   time.Time `json:"geocodedAt"`
}
