package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSpanContextRoundTrip(t *testing.T) {
	original := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	carried := BuildSpanContext(original)
	restored, err := ParseSpanContext(carried)
	require.NoError(t, err)

	assert.Equal(t, original.TraceID(), restored.TraceID())
	assert.Equal(t, original.SpanID(), restored.SpanID())
	assert.Equal(t, original.TraceFlags(), restored.TraceFlags())
	assert.True(t, restored.IsRemote())
}
