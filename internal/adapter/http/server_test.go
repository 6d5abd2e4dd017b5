package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/store-locator/internal/adapter/http"
	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/gate"
	"github.com/couchcryptid/store-locator/internal/geocode"
	"github.com/couchcryptid/store-locator/internal/observability"
	"github.com/couchcryptid/store-locator/internal/token"
)

const (
	testSecret      = "http-test-secret"
	testOperatorKey = "operator-key"
)

var testScope = domain.Scope{SiteID: "site-1", CollectionID: "coll-1", MapboxKey: "pk.scope"}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

// Stubs for the API's service ports.

type stubLocations struct {
	locs []domain.Location
	err  error
	seen domain.Scope
}

func (s *stubLocations) List(_ context.Context, scope domain.Scope) ([]domain.Location, error) {
	s.seen = scope
	return s.locs, s.err
}

type stubGeocode struct {
	results []geocode.Result
	body    []byte
	err     error
	reqs    []geocode.Request
}

func (s *stubGeocode) ResolveBatch(_ context.Context, _ domain.Scope, reqs []geocode.Request) []geocode.Result {
	s.reqs = reqs
	return s.results
}

func (s *stubGeocode) Search(_ context.Context, _ domain.Scope, _ string) ([]byte, error) {
	return s.body, s.err
}

type stubTiles struct {
	tile  domain.Tile
	err   error
	calls int
}

func (s *stubTiles) FetchTile(context.Context, int, int, int, string, domain.Scope) (domain.Tile, error) {
	s.calls++
	return s.tile, s.err
}

type testEnv struct {
	server *httpadapter.Server
	clock  *clockwork.FakeClock
	issuer *token.Issuer
	token  string
}

type envDeps struct {
	basePath  string
	locations httpadapter.LocationLister
	geocoder  httpadapter.GeocodeService
	tiles     httpadapter.TileService
	issuer    httpadapter.TokenIssuer
	sites     httpadapter.SiteDirectory
	ready     error
}

func newTestEnv(t *testing.T, deps envDeps) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC))
	codec, err := token.NewCodec(testSecret, clock)
	require.NoError(t, err)
	issuer := token.NewIssuer(codec, time.Hour)
	tok, err := issuer.Issue(testScope.SiteID, testScope.CollectionID, testScope.MapboxKey, 0)
	require.NoError(t, err)

	if deps.locations == nil {
		deps.locations = &stubLocations{}
	}
	if deps.geocoder == nil {
		deps.geocoder = &stubGeocode{}
	}
	if deps.tiles == nil {
		deps.tiles = &stubTiles{}
	}
	if deps.issuer == nil {
		deps.issuer = issuer
	}

	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := httpadapter.Options{
		BasePath:       deps.basePath,
		AllowedOrigins: []string{"https://*.webflow.io"},
		OperatorAPIKey: testOperatorKey,
	}
	srv := httpadapter.NewServer(":0", opts,
		httpadapter.NewAPI(deps.locations, deps.geocoder, deps.tiles, logger),
		httpadapter.NewTokenHandler(deps.issuer, deps.sites, metrics, logger),
		gate.New(deps.basePath, codec, metrics, logger),
		&mockReadiness{err: deps.ready},
		logger,
	)
	return &testEnv{server: srv, clock: clock, issuer: issuer, token: tok}
}

func (e *testEnv) do(method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) authed(method, target string, body []byte) *httptest.ResponseRecorder {
	return e.do(method, target, body, map[string]string{"Authorization": "Bearer " + e.token})
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, envDeps{})
	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	env := newTestEnv(t, envDeps{})
	rec := env.do(http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	env := newTestEnv(t, envDeps{ready: errors.New("redis unreachable")})
	rec := env.do(http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envDeps{})
	rec := env.do(http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPreflightSkipsGate(t *testing.T) {
	env := newTestEnv(t, envDeps{})
	rec := env.do(http.MethodOptions, "/api/locations", nil, map[string]string{"Origin": "https://acme.webflow.io"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://acme.webflow.io", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRejectionsCarryCORSHeaders(t *testing.T) {
	env := newTestEnv(t, envDeps{})
	rec := env.do(http.MethodGet, "/api/locations", nil, map[string]string{"Origin": "https://acme.webflow.io"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "https://acme.webflow.io", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestBasePathPrefixesRoutes(t *testing.T) {
	locs := &stubLocations{locs: []domain.Location{}}
	env := newTestEnv(t, envDeps{basePath: "/map", locations: locs})

	assert.Equal(t, http.StatusOK, env.authed(http.MethodGet, "/map/api/locations", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.authed(http.MethodGet, "/api/locations", nil).Code)
}
