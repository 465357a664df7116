package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDispatch_EmitsSpanPerChannel(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	relay := NewRelay(Credentials{}, true, nil)
	logs := relay.Dispatch(context.Background(), testEvent("discord", "webhook", "mobile"))
	require.Len(t, logs, 3)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	for _, s := range spans {
		assert.Equal(t, "notify.dispatch", s.Name())
		// Dry-run outcomes are not errors.
		assert.NotEqual(t, otelcodes.Error, s.Status().Code)

		var channel, eventType string
		for _, attr := range s.Attributes() {
			switch string(attr.Key) {
			case "notify.channel":
				channel = attr.Value.AsString()
			case "event.type":
				eventType = attr.Value.AsString()
			}
		}
		assert.NotEmpty(t, channel)
		assert.Equal(t, "security_alert", eventType)
	}
}
