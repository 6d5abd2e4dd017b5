package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/store-locator/internal/config"
	"github.com/couchcryptid/store-locator/internal/domain"
)

// eventType labels every message on the geocode topic.
const eventType = "LocationGeocoded"

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// GeocodeWriter publishes LocationGeocoded events so a downstream worker can
// write coordinates back to the CMS. It implements geocode.Publisher.
type GeocodeWriter struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeocodeWriter creates a producer for the configured geocode topic.
// Writes are asynchronous so a slow broker never holds up an API response;
// delivery failures are logged by the completion callback.
func NewGeocodeWriter(cfg *config.Config, logger *slog.Logger) *GeocodeWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaGeocodeTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafkago.Message, err error) {
			if err != nil {
				logger.Error("geocode events not delivered", "count", len(msgs), "error", err)
			}
		},
	}
	return &GeocodeWriter{writer: w, timeout: 5 * time.Second, logger: logger}
}

// PublishGeocoded serializes and publishes events in a single WriteMessages
// call. Events are keyed by location so updates for one location stay ordered.
func (w *GeocodeWriter) PublishGeocoded(ctx context.Context, events []domain.GeocodeEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	// The request context may end as soon as the response is written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish geocode events: %w", err)
	}
	w.logger.Debug("geocode events published", "count", len(msgs))
	return nil
}

// Close flushes pending messages and closes the producer.
func (w *GeocodeWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a GeocodeEvent into a Kafka message.
func serializeToMessage(event domain.GeocodeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geocode event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SiteID + "/" + event.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "site_id", Value: []byte(event.SiteID)},
			{Key: "geocoded_at", Value: []byte(event.GeocodedAt.Format(time.RFC3339))},
		},
	}, nil
}
