package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestBuildCascadeMessage(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	now := time.UnixMilli(1700000000000)

	msg := buildCascadeMessage(7, 42, sc, now)
	assert.Equal(t, int64(7), msg.ReqID)
	assert.Equal(t, int64(42), msg.FreetID)
	assert.Equal(t, now.UnixMilli(), msg.Timestamp)
	assert.Equal(t, now.UnixMilli(), msg.CascadeSendTs)
	assert.Equal(t, [16]byte(sc.TraceID()), msg.SpanContext.TraceID)
	assert.Equal(t, [8]byte(sc.SpanID()), msg.SpanContext.SpanID)
}

func TestCascadeRoutingKeys(t *testing.T) {
	keys := cascadeRoutingKeys([]string{"eu", "us", "ap"})
	assert.Equal(t, []string{"cascade-delete-eu", "cascade-delete-us", "cascade-delete-ap"}, keys)

	assert.Empty(t, cascadeRoutingKeys(nil))
}
