package kafka

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/catalog/pkg/kafka"

// headerCarrier lets the OpenTelemetry propagator read and write trace
// context on message headers.
type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set replaces an existing header with the same key or appends a new one.
func (c *headerCarrier) Set(key, value string) {
	for i := range *c {
		if (*c)[i].Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}

func headerValue(headers []kafka.Header, key string) string {
	c := headerCarrier(headers)
	return c.Get(key)
}

// startPublishSpan opens a producer span for event and writes its context
// into msg so the consuming side continues the same trace.
func startPublishSpan(ctx context.Context, msg *kafka.Message, event *Event) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, msg.Topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", event.EventID),
			attribute.String("catalog.event_type", event.EventType),
			attribute.String("catalog.aggregate_id", event.AggregateID),
		),
	)
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(&msg.Headers))
	return ctx, span
}

// startConsumeSpan continues the trace carried by msg with a consumer span.
func startConsumeSpan(ctx context.Context, msg kafka.Message, group string) (context.Context, trace.Span) {
	headers := headerCarrier(msg.Headers)
	ctx = otel.GetTextMapPropagator().Extract(ctx, &headers)

	return otel.Tracer(tracerName).Start(ctx, msg.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.consumer.group.name", group),
			attribute.String("messaging.destination.partition.id", strconv.Itoa(msg.Partition)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
