package webflow

import (
	"context"
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
	provider = "webflow"
	pageSize = 100
	// maxPages guards against a misbehaving pagination total.
	maxPages = 100
)

// Client reads collection items from the Webflow Data API (v2). It
// implements domain.CollectionSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Webflow client rooted at baseURL, e.g. https://api.webflow.com/v2.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// ListItems returns every item in the collection, following offset pagination.
func (c *Client) ListItems(ctx context.Context, accessToken, collectionID string) ([]domain.Location, error) {
	var out []domain.Location
	offset := 0
	for page := 0; page < maxPages; page++ {
		resp, err := c.listPage(ctx, accessToken, collectionID, offset)
		if err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			out = append(out, it.toLocation())
		}

		offset += len(resp.Items)
		if lastPage(resp, offset) {
			return out, nil
		}
	}
	c.logger.Warn("webflow pagination limit reached",
		"collection_id", collectionID,
		"items", len(out),
	)
	return out, nil
}

// lastPage reports whether resp ends the listing. Without a total, a short
// page is the last one.
func lastPage(resp listResponse, offset int) bool {
	if len(resp.Items) == 0 {
		return true
	}
	if resp.Pagination.Total > 0 {
		return offset >= resp.Pagination.Total
	}
	return len(resp.Items) < pageSize
}

func (c *Client) listPage(ctx context.Context, accessToken, collectionID string, offset int) (listResponse, error) {
	u := fmt.Sprintf("%s/collections/%s/items?%s", c.baseURL, url.PathEscape(collectionID), url.Values{
		"limit":  {strconv.Itoa(pageSize)},
		"offset": {strconv.Itoa(offset)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return listResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderDuration.WithLabelValues(provider, "list_items").Observe(time.Since(start).Seconds())
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return listResponse{}, &domain.UpstreamError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return listResponse{}, &domain.UpstreamError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("collection %s: %s", collectionID, body),
		}
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return listResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return page, nil
}

// Webflow API response types.

type listResponse struct {
	Items      []item     `json:"items"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type item struct {
	ID        string    `json:"id"`
	FieldData fieldData `json:"fieldData"`
}

type fieldData struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (it item) toLocation() domain.Location {
	loc := domain.Location{
		ID:      it.ID,
		Name:    it.FieldData.Name,
		Address: it.FieldData.Address,
		Phone:   it.FieldData.Phone,
	}
	if it.FieldData.Latitude != nil && it.FieldData.Longitude != nil {
		loc.Coordinate = domain.Resolved(*it.FieldData.Latitude, *it.FieldData.Longitude)
	}
	return loc
}
