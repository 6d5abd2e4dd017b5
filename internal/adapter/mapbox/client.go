package mapbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

const (
	provider = "mapbox"

	defaultGeocodeURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	defaultStylesURL  = "https://api.mapbox.com/styles/v1/mapbox"

	// maxBodyBytes bounds geocoding responses and tile images.
	maxBodyBytes = 8 << 20
)

var errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)

// Client calls the Mapbox Geocoding and Static Tiles APIs. It implements
// domain.Geocoder and domain.TileFetcher. Access keys are passed per call and
// never appear in returned errors or logs.
type Client struct {
	httpClient *http.Client
	geocodeURL string
	stylesURL  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox client whose requests time out after timeout.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		geocodeURL: defaultGeocodeURL,
		stylesURL:  defaultStylesURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Forward converts an address to the coordinate of the first feature.
func (c *Client) Forward(ctx context.Context, accessKey, address string) (domain.Coordinate, error) {
	body, _, err := c.get(ctx, c.geocodeEndpoint(address, accessKey, url.Values{"limit": {"1"}}), "forward")
	if err != nil {
		return domain.Unresolved(), err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Unresolved(), fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Center) != 2 {
		return domain.Unresolved(), fmt.Errorf("geocode %q: %w", address, domain.ErrNotFound)
	}

	// Mapbox uses lon,lat order.
	center := resp.Features[0].Center
	return domain.Resolved(center[1], center[0]), nil
}

// Search returns the provider's feature collection for a free-text query.
func (c *Client) Search(ctx context.Context, accessKey, query string) ([]byte, error) {
	body, _, err := c.get(ctx, c.geocodeEndpoint(query, accessKey, nil), "search")
	return body, err
}

// FetchTile loads one raster tile for a Mapbox-owned style.
func (c *Client) FetchTile(ctx context.Context, accessKey string, req domain.TileRequest) (domain.Tile, error) {
	u := fmt.Sprintf("%s/%s/tiles/%d/%d/%d?%s",
		c.stylesURL, url.PathEscape(req.Style), req.Z, req.X, req.Y,
		url.Values{"access_token": {accessKey}}.Encode())

	body, header, err := c.get(ctx, u, "tile")
	if err != nil {
		return domain.Tile{}, err
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return domain.Tile{Data: body, ContentType: contentType}, nil
}

func (c *Client) geocodeEndpoint(query, accessKey string, extra url.Values) string {
	params := url.Values{"access_token": {accessKey}}
	for k, v := range extra {
		params[k] = v
	}
	return fmt.Sprintf("%s/%s.json?%s", c.geocodeURL, url.PathEscape(query), params.Encode())
}

func (c *Client) get(ctx context.Context, fullURL, operation string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, nil, &domain.UpstreamError{Provider: provider, Err: redact(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debug("mapbox non-success response",
			"operation", operation,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, nil, &domain.UpstreamError{Provider: provider, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, nil, &domain.UpstreamError{Provider: provider, Err: redact(err)}
	}
	if len(body) > maxBodyBytes {
		return nil, nil, &domain.UpstreamError{Provider: provider, Err: errBodyTooLarge}
	}
	return body, resp.Header, nil
}

// redact strips the request URL, which carries the access key, from
// transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%s: timeout: %w", urlErr.Op, urlErr.Err)
		}
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}

// TileKey identifies a tile fetched with accessKey. The key itself is
// reduced to a short digest so it never appears in cache keys.
func TileKey(accessKey string, req domain.TileRequest) string {
	sum := sha256.Sum256([]byte(accessKey))
	return hex.EncodeToString(sum[:8]) + "/" + req.Style + "/" +
		strconv.Itoa(req.Z) + "/" + strconv.Itoa(req.X) + "/" + strconv.Itoa(req.Y)
}
