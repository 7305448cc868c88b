package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// --- ProducerConfig tests ---

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestDefaultProducerConfig_SingleBroker(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Len(t, cfg.Brokers, 1)
	assert.Equal(t, "localhost:9092", cfg.Brokers[0])
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	// NewProducer requires broker addresses but does not connect immediately.
	// We verify the returned producer is non-nil and can be closed.
	cfg := DefaultProducerConfig([]string{"localhost:19092"})
	p := NewProducer(cfg, nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)

	// Close should succeed even without a real broker.
	err := p.Close()
	assert.NoError(t, err)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestPingBrokers_EmptySlice(t *testing.T) {
	err := PingBrokers(t.Context(), []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestProducer_Publish_ReconciliationMessage(t *testing.T) {
	exporter := setupTestTracer(t)

	w := &recordingWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	event := reconciliationEvent("evt-1", "o1")

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(t.Context(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	}))

	require.NoError(t, p.Publish(ctx, topicReconciliation, event))

	msgs := w.written()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, topicReconciliation, msg.Topic)
	assert.Equal(t, []byte("o1"), msg.Key)
	assert.Equal(t, "evt-1", headerValue(msg.Headers, HeaderEventID))
	assert.Equal(t, topicReconciliation, headerValue(msg.Headers, HeaderEventType))
	assert.Equal(t, "req-o1", headerValue(msg.Headers, HeaderCorrelationID))

	span := requireSpan(t, exporter, topicReconciliation+" publish")
	assert.Equal(t, sid, span.Parent.SpanID())
	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-" + span.SpanContext.SpanID().String() + "-01"
	assert.Equal(t, traceparent, headerValue(msg.Headers, "traceparent"))

	decoded, err := DecodeEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "restore product: store unavailable", decoded.Reason())
}

func TestProducer_Publish_WriteError(t *testing.T) {
	exporter := setupTestTracer(t)

	w := &recordingWriter{err: errors.New("no leader")}
	p := &Producer{writer: w, logger: testLogger()}

	err := p.Publish(t.Context(), topicReconciliation, reconciliationEvent("evt-1", "o1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no leader")
	assert.Contains(t, err.Error(), topicReconciliation)

	span := requireSpan(t, exporter, topicReconciliation+" publish")
	assert.Equal(t, codes.Error, span.Status.Code)
}
