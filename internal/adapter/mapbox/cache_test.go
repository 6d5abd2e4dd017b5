package mapbox

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/observability"
)

// --- mock for cache tests ---

type countingFetcher struct {
	calls    int
	tile     domain.Tile
	err      error
	rejected map[string]bool // access keys answered with 401
}

func (m *countingFetcher) FetchTile(_ context.Context, accessKey string, _ domain.TileRequest) (domain.Tile, error) {
	m.calls++
	if m.rejected[accessKey] {
		return domain.Tile{}, &domain.UpstreamError{Provider: provider, StatusCode: http.StatusUnauthorized}
	}
	return m.tile, m.err
}

// --- CachedTiles tests ---

func TestCachedTiles_CacheHit(t *testing.T) {
	inner := &countingFetcher{tile: domain.Tile{Data: []byte("png"), ContentType: "image/png"}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedTiles(inner, 10, 1<<20, metrics)
	req := domain.TileRequest{Z: 1, X: 1, Y: 1, Style: "streets-v12"}

	t1, err := cached.FetchTile(context.Background(), "key-a", req)
	require.NoError(t, err)
	t2, err := cached.FetchTile(context.Background(), "key-a", req)
	require.NoError(t, err)

	assert.Equal(t, t1, t2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TileCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TileCache.WithLabelValues("miss")))
}

func TestCachedTiles_KeyedPerAccessKey(t *testing.T) {
	inner := &countingFetcher{
		tile:     domain.Tile{Data: []byte("png"), ContentType: "image/png"},
		rejected: map[string]bool{"pk.revoked": true},
	}
	cached := NewCachedTiles(inner, 10, 1<<20, observability.NewMetricsForTesting())
	req := domain.TileRequest{Z: 4, X: 3, Y: 2, Style: "streets-v12"}

	_, err := cached.FetchTile(context.Background(), "pk.good", req)
	require.NoError(t, err)

	_, err = cached.FetchTile(context.Background(), "pk.revoked", req)
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.Equal(t, 2, inner.calls, "a tile cached under one key must not be served under another")
}

func TestCachedTiles_DifferentStylesMiss(t *testing.T) {
	inner := &countingFetcher{tile: domain.Tile{Data: []byte("png")}}
	cached := NewCachedTiles(inner, 10, 1<<20, observability.NewMetricsForTesting())

	_, _ = cached.FetchTile(context.Background(), "k", domain.TileRequest{Z: 1, Style: "streets-v12"})
	_, _ = cached.FetchTile(context.Background(), "k", domain.TileRequest{Z: 1, Style: "dark-v11"})

	assert.Equal(t, 2, inner.calls)
}

func TestCachedTiles_ErrorsNotCached(t *testing.T) {
	inner := &countingFetcher{err: errors.New("boom")}
	cached := NewCachedTiles(inner, 10, 1<<20, observability.NewMetricsForTesting())
	req := domain.TileRequest{Z: 1, Style: "streets-v12"}

	_, err := cached.FetchTile(context.Background(), "k", req)
	require.Error(t, err)
	_, err = cached.FetchTile(context.Background(), "k", req)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3, 0, nil)

	c.put("a", "A")
	c.put("b", "B")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result)

	_, ok = c.get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2, 0, nil)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2, 0, nil)

	c.put("a", "A")
	c.put("b", "B")

	c.get("a")

	// "b" is now least recently used.
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2, 0, nil)

	c.put("a", "A1")
	c.put("a", "A2")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result)
	assert.Equal(t, 1, c.size())
}

func TestLRUCache_EvictsToFitCost(t *testing.T) {
	c := newLRUCache(10, 10, func(v string) int { return len(v) })

	c.put("a", "aaaa")
	c.put("b", "bbbb")
	c.put("c", "cccc") // 12 > 10, evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.size())
	assert.Equal(t, 8, c.bytes())

	c.put("b", "b") // shrinking an entry frees its cost
	assert.Equal(t, 5, c.bytes())
}

func TestLRUCache_SkipsValuesOverBudget(t *testing.T) {
	c := newLRUCache(10, 4, func(v string) int { return len(v) })

	c.put("small", "ok")
	c.put("big", "too large")

	_, ok := c.get("big")
	assert.False(t, ok)
	_, ok = c.get("small")
	assert.True(t, ok, "an oversized value must not evict what fits")
	assert.Equal(t, 2, c.bytes())
}
