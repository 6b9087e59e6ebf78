package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOtelConfigDefaults(t *testing.T) {
	assert.Equal(t, "buddybot", OtelConfig{}.service())
	assert.Equal(t, defaultSampleRatio, OtelConfig{}.ratio())
	assert.Equal(t, 1.0, OtelConfig{SampleRatio: 4}.ratio())
	assert.Equal(t, 0.5, OtelConfig{SampleRatio: 0.5}.ratio())

	assert.False(t, OtelConfig{Exporter: "otlp"}.useOTLP(), "otlp needs an endpoint")
	assert.True(t, OtelConfig{Exporter: "OTLP", Endpoint: "collector:4318"}.useOTLP())
}

func TestInitOTelDisabled(t *testing.T) {
	assert.Nil(t, InitOTel(context.Background(), nil, OtelConfig{}))
}

func TestNewTracerProviderStdout(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), OtelConfig{ServiceName: "buddybot-test", Exporter: "stdout"})
	require.NoError(t, err)
	_, span := tp.Tracer("test").Start(context.Background(), "Flows.Authoring.CreateFlow")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
}
