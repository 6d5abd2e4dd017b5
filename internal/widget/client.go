package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/geocode"
)

const provider = "store-locator"

// Client calls the gateway API on behalf of an embed. The capability token
// is passed per call; one client serves every embed that shares a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the gateway at baseURL (which may include
// a base path such as https://example.com/map).
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// BaseURL returns the gateway root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Locations fetches the collection bound to token.
func (c *Client) Locations(ctx context.Context, token string) ([]domain.Location, error) {
	var locs []domain.Location
	if err := c.do(ctx, http.MethodGet, "/api/locations", token, nil, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}

// GeocodeBatch resolves addresses by id. Unresolvable entries are absent.
func (c *Client) GeocodeBatch(ctx context.Context, token string, reqs []geocode.Request) ([]geocode.Result, error) {
	var resp struct {
		GeocodedLocations []geocode.Result `json:"geocodedLocations"`
	}
	body := struct {
		Locations []geocode.Request `json:"locations"`
	}{Locations: reqs}
	if err := c.do(ctx, http.MethodPost, "/api/geocode", token, body, &resp); err != nil {
		return nil, err
	}
	return resp.GeocodedLocations, nil
}

// LoadLocations fetches the collection and fills in coordinates the server
// did not have. If the geocode call fails the list is returned as fetched.
func (c *Client) LoadLocations(ctx context.Context, token string) ([]domain.Location, error) {
	locs, err := c.Locations(ctx, token)
	if err != nil {
		return nil, err
	}

	var reqs []geocode.Request
	for _, l := range locs {
		if !l.Coordinate.IsResolved() && l.Address != "" {
			reqs = append(reqs, geocode.Request{ID: l.ID, Address: l.Address})
		}
	}
	if len(reqs) == 0 {
		return locs, nil
	}

	results, err := c.GeocodeBatch(ctx, token, reqs)
	if err != nil {
		return locs, nil //nolint:nilerr // unresolved stores are still listed
	}
	byID := make(map[string]domain.Coordinate, len(results))
	for _, r := range results {
		byID[r.ID] = domain.Resolved(r.Latitude, r.Longitude)
	}
	for i := range locs {
		if coord, ok := byID[locs[i].ID]; ok && !locs[i].Coordinate.IsResolved() {
			locs[i].Coordinate = coord
		}
	}
	return locs, nil
}

// SearchAddress resolves free text to the first feature's center, or
// ErrNoAddress when the provider matched nothing. Gateway failures,
// including a 404 for a site without a map provider, are returned as
// *domain.UpstreamError.
func (c *Client) SearchAddress(ctx context.Context, token, address string) (domain.Coordinate, error) {
	var fc struct {
		Features []struct {
			Center []float64 `json:"center"`
		} `json:"features"`
	}
	path := "/api/geocode?" + url.Values{"address": {address}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, token, nil, &fc); err != nil {
		return domain.Unresolved(), err
	}
	if len(fc.Features) == 0 || len(fc.Features[0].Center) < 2 {
		return domain.Unresolved(), fmt.Errorf("address %q: %w", address, ErrNoAddress)
	}
	center := fc.Features[0].Center
	return domain.Resolved(center[1], center[0]), nil
}

// TileURLTemplate returns the tile layer URL with {z}/{x}/{y} placeholders.
// The token travels as a query parameter because image loads cannot set
// headers.
func (c *Client) TileURLTemplate(token, style string) string {
	q := url.Values{"token": {token}}
	if style != "" {
		q.Set("style", style)
	}
	return c.baseURL + "/api/maps/tiles/{z}/{x}/{y}.png?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UpstreamError{Provider: provider, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Registry hands out one Client per gateway base URL. It is created by the
// composition root and passed to whatever needs a client, so tests can use
// a fresh registry per case.
type Registry struct {
	mu         sync.Mutex
	httpClient *http.Client
	clients    map[string]*Client
}

// NewRegistry creates an empty registry whose clients share httpClient.
func NewRegistry(httpClient *http.Client) *Registry {
	return &Registry{httpClient: httpClient, clients: make(map[string]*Client)}
}

// Client returns the client for baseURL, creating it on first use.
func (r *Registry) Client(baseURL string) *Client {
	key := strings.TrimRight(baseURL, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c
	}
	c := NewClient(key, r.httpClient)
	r.clients[key] = c
	return c
}

// Len returns the number of distinct base URLs seen.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
