package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/store-locator/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
	ctxErr error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.ctxErr = ctx.Err()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestWriter(fw *fakeWriter) *GeocodeWriter {
	return &GeocodeWriter{writer: fw, timeout: time.Second, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

var testEvent = domain.GeocodeEvent{
	SiteID:       "site-1",
	CollectionID: "coll-1",
	LocationID:   "loc-9",
	Address:      "1 Main St",
	Latitude:     41.0,
	Longitude:    -73.9,
	GeocodedAt:   time.Date(2025, 4, 26, 15, 10, 0, 0, time.UTC),
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testEvent)
	require.NoError(t, err)

	assert.Equal(t, []byte("site-1/loc-9"), msg.Key)
	assert.JSONEq(t, `{
		"siteId": "site-1",
		"collectionId": "coll-1",
		"locationId": "loc-9",
		"address": "1 Main St",
		"latitude": 41.0,
		"longitude": -73.9,
		"geocodedAt": "2025-04-26T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("LocationGeocoded"), msg.Headers[0].Value)
	assert.Equal(t, "site_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("site-1"), msg.Headers[1].Value)
	assert.Equal(t, "geocoded_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2025-04-26T15:10:00Z"), msg.Headers[2].Value)
}

func TestPublishGeocoded(t *testing.T) {
	fw := &fakeWriter{}
	w := newTestWriter(fw)

	second := testEvent
	second.LocationID = "loc-10"
	require.NoError(t, w.PublishGeocoded(context.Background(), []domain.GeocodeEvent{testEvent, second}))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("site-1/loc-10"), fw.msgs[1].Key)
}

func TestPublishGeocoded_Empty(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, newTestWriter(fw).PublishGeocoded(context.Background(), nil))
	assert.Empty(t, fw.msgs)
}

func TestPublishGeocoded_OutlivesRequestContext(t *testing.T) {
	fw := &fakeWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, newTestWriter(fw).PublishGeocoded(ctx, []domain.GeocodeEvent{testEvent}))
	assert.NoError(t, fw.ctxErr)
}

func TestPublishGeocoded_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	err := newTestWriter(fw).PublishGeocoded(context.Background(), []domain.GeocodeEvent{testEvent})
	assert.ErrorContains(t, err, "leader not available")
}

func TestClose(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, newTestWriter(fw).Close())
	assert.True(t, fw.closed)
}
