package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix prefixes the dead-letter topic of every catalog topic.
const DLQTopicPrefix = "catalog.dlq"

// Headers added to dead-lettered messages.
const (
	HeaderDLQOriginalTopic     = "dlq.original_topic"
	HeaderDLQOriginalPartition = "dlq.original_partition"
	HeaderDLQOriginalOffset    = "dlq.original_offset"
	HeaderDLQConsumerGroup     = "dlq.consumer_group"
	HeaderDLQFailedAt          = "dlq.failed_at"
	HeaderDLQCause             = "dlq.cause"
	HeaderDLQError             = "dlq.error"
)

// Values of HeaderDLQCause.
const (
	CauseMalformed     = "malformed"
	CauseHandlerFailed = "handler_failed"
)

// DLQProducer parks messages the consumer gave up on. An operator replays
// a parked reconciliation once the store is healthy again.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewDLQProducer creates a producer writing to DLQTopic of each failed
// message's topic.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &DLQProducer{writer: w, logger: logger, now: time.Now}
}

// DLQTopic returns the dead-letter topic for originalTopic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// Publish copies msg to its dead-letter topic unchanged and appends headers
// recording where it came from and why it failed.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error {
	dlqTopic := DLQTopic(msg.Topic)

	cause := CauseHandlerFailed
	if errors.Is(lastErr, ErrMalformedEvent) {
		cause = CauseMalformed
	}

	headers := make([]kafka.Header, 0, len(msg.Headers)+7)
	headers = append(headers, msg.Headers...)
	c := headerCarrier(headers)
	c.Set(HeaderDLQOriginalTopic, msg.Topic)
	c.Set(HeaderDLQOriginalPartition, strconv.Itoa(msg.Partition))
	c.Set(HeaderDLQOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	c.Set(HeaderDLQConsumerGroup, consumerGroup)
	c.Set(HeaderDLQFailedAt, d.now().UTC().Format(time.RFC3339))
	c.Set(HeaderDLQCause, cause)
	if lastErr != nil {
		c.Set(HeaderDLQError, lastErr.Error())
	}

	attrs := []any{
		slog.String("dlq_topic", dlqTopic),
		slog.String("original_topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("event_id", headerValue(msg.Headers, HeaderEventID)),
		slog.String("aggregate_id", string(msg.Key)),
		slog.String("cause", cause),
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   dlqTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: c,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to dead-letter message", append(attrs, slog.String("error", err.Error()))...)
		return fmt.Errorf("publish to DLQ %s: %w", dlqTopic, err)
	}

	d.logger.WarnContext(ctx, "message dead-lettered", append(attrs, slog.String("consumer_group", consumerGroup))...)
	return nil
}

// Close flushes and closes the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
