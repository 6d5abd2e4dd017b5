package widget

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/ranker"
)

// recordingRenderer logs every call so tests can assert on ordering.
type recordingRenderer struct {
	calls     []string
	markers   []Marker
	createErr error
}

func (r *recordingRenderer) CreateMap(tileURL string, center ranker.Position, zoom int) error {
	r.calls = append(r.calls, fmt.Sprintf("create(%s,%d)", tileURL, zoom))
	return r.createErr
}

func (r *recordingRenderer) SetMarkers(markers []Marker) {
	r.calls = append(r.calls, fmt.Sprintf("set(%d)", len(markers)))
	r.markers = markers
}

func (r *recordingRenderer) ClearMarkers() {
	r.calls = append(r.calls, "clear")
	r.markers = nil
}

func (r *recordingRenderer) InvalidateSize() { r.calls = append(r.calls, "resize") }

func (r *recordingRenderer) Destroy() { r.calls = append(r.calls, "destroy") }

var lifecycleLocations = []domain.Location{
	{ID: "1", Name: "A", Address: "X", Coordinate: domain.Resolved(41.0, -73.9)},
	{ID: "2", Name: "B", Address: "Y"},
	{ID: "3", Name: "C", Address: "Z", Coordinate: domain.Resolved(40.0, -74.0)},
}

func TestMapLifecycle_StylesThenLocations(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")
	assert.Equal(t, Uninitialized, m.State())

	require.NoError(t, m.OnStylesLoaded())
	assert.Equal(t, MapReady, m.State())

	m.OnLocationsUpdated(lifecycleLocations)
	assert.Equal(t, MarkersSynced, m.State())

	assert.Equal(t, []string{"create(tiles,12)", "clear", "set(2)"}, r.calls)
	assert.Equal(t, []Marker{
		{ID: "1", Position: ranker.Position{Latitude: 41.0, Longitude: -73.9}, Title: "A", Detail: "X"},
		{ID: "3", Position: ranker.Position{Latitude: 40.0, Longitude: -74.0}, Title: "C", Detail: "Z"},
	}, r.markers)
}

func TestMapLifecycle_LocationsBeforeStylesAreHeld(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")

	m.OnLocationsUpdated(lifecycleLocations)
	assert.Equal(t, Uninitialized, m.State())
	assert.Empty(t, r.calls)

	require.NoError(t, m.OnStylesLoaded())
	assert.Equal(t, MarkersSynced, m.State())
	assert.Equal(t, []string{"create(tiles,12)", "clear", "set(2)"}, r.calls)
}

func TestMapLifecycle_UpdatesReplaceMarkers(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")
	require.NoError(t, m.OnStylesLoaded())

	m.OnLocationsUpdated(lifecycleLocations)
	m.OnLocationsUpdated(lifecycleLocations[:1])

	assert.Equal(t, []string{"create(tiles,12)", "clear", "set(2)", "clear", "set(1)"}, r.calls)
	assert.Len(t, r.markers, 1)
}

func TestMapLifecycle_StylesLoadedTwiceCreatesOnce(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")

	require.NoError(t, m.OnStylesLoaded())
	require.NoError(t, m.OnStylesLoaded())

	assert.Equal(t, []string{"create(tiles,12)"}, r.calls)
}

func TestMapLifecycle_CreateFailureStaysUninitialized(t *testing.T) {
	r := &recordingRenderer{createErr: errors.New("no container")}
	m := NewMapLifecycle(r, "tiles")

	assert.Error(t, m.OnStylesLoaded())
	assert.Equal(t, Uninitialized, m.State())
}

func TestMapLifecycle_ResizeOnlyWithMap(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")

	m.OnViewportResized()
	assert.Empty(t, r.calls)

	require.NoError(t, m.OnStylesLoaded())
	m.OnViewportResized()
	assert.Equal(t, []string{"create(tiles,12)", "resize"}, r.calls)
}

func TestMapLifecycle_CloseCleansUp(t *testing.T) {
	r := &recordingRenderer{}
	m := NewMapLifecycle(r, "tiles")
	require.NoError(t, m.OnStylesLoaded())
	m.OnLocationsUpdated(lifecycleLocations)

	m.Close()

	assert.Equal(t, Uninitialized, m.State())
	assert.Equal(t, []string{"create(tiles,12)", "clear", "set(2)", "clear", "destroy"}, r.calls)

	// A remount starts from scratch without the old locations.
	r.calls = nil
	require.NoError(t, m.OnStylesLoaded())
	assert.Equal(t, MapReady, m.State())
	assert.Equal(t, []string{"create(tiles,12)"}, r.calls)
}

func TestMapState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "map_ready", MapReady.String())
	assert.Equal(t, "markers_synced", MarkersSynced.String())
}
