package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/od-flow-service/internal/config"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/couchcryptid/od-flow-service/internal/observability"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes computed selections to a Kafka topic.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// PublishSelection serializes a selection and writes it as one message keyed
// by its origin and destination controls.
func (w *Writer) PublishSelection(ctx context.Context, sel domain.Selection) error {
	msg, err := serializeToMessage(sel)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish selection: %w", err)
	}
	w.metrics.SelectionsPublished.Inc()
	w.logger.Debug("selection published", "key", string(msg.Key), "rows", sel.RowCount)
	return nil
}

// Close flushes pending messages and releases the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// selectionKey names the zone pair a selection was computed for. An
// unrestricted side is written as AllZonesLabel.
func selectionKey(p domain.SelectionParams) string {
	origin, destination := p.Origin, p.Destination
	if domain.IsAllZones(origin) {
		origin = domain.AllZonesLabel
	}
	if domain.IsAllZones(destination) {
		destination = domain.AllZonesLabel
	}
	return origin + "|" + destination
}

// serializeToMessage marshals a Selection into a Kafka message.
func serializeToMessage(sel domain.Selection) (kafkago.Message, error) {
	data, err := json.Marshal(sel)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize selection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(selectionKey(sel.Params)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "selection_rows", Value: []byte(strconv.Itoa(sel.RowCount))},
			{Key: "computed_at", Value: []byte(sel.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
