package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/torosent/crankmeter/internal/config"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{rate: 0, want: sdktrace.NeverSample().Description()},
		{rate: 1, want: sdktrace.AlwaysSample().Description()},
		{rate: 0.25, want: sdktrace.TraceIDRatioBased(0.25).Description()},
		{rate: -0.5, wantErr: true},
		{rate: 1.5, wantErr: true},
	}
	for _, tt := range tests {
		s, err := newSampler(tt.rate)
		if tt.wantErr {
			assert.Error(t, err, "rate %g", tt.rate)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Description())
	}
}

func TestInit(t *testing.T) {
	no := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantExporting bool
		wantPropagate bool
		wantErr       bool
	}{
		{name: "disabled", cfg: config.TracingConfig{}},
		{
			name:          "grpc",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", SampleRate: 1, Insecure: true},
			wantExporting: true,
			wantPropagate: true,
		},
		{
			name:          "http defaults to always sampling at rate 1",
			cfg:           config.TracingConfig{Endpoint: "localhost:4318", Protocol: "HTTP", SampleRate: 1, Insecure: true},
			wantExporting: true,
			wantPropagate: true,
		},
		{
			name:          "propagation switched off",
			cfg:           config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1, Insecure: true, Propagate: &no},
			wantExporting: true,
		},
		{name: "unknown protocol", cfg: config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift"}, wantErr: true},
		{name: "bad rate", cfg: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 2}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
			p, err := Init(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

			assert.Equal(t, tt.wantExporting, p.tp != nil)
			assert.Equal(t, tt.wantPropagate, p.ShouldPropagate())
		})
	}
}

func TestInitFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_SERVICE_NAME", "bench-monitor")

	p, err := Init(context.Background(), config.TracingConfig{SampleRate: 1, Insecure: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.NotNil(t, p.tp)
	assert.True(t, p.ShouldPropagate())
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.ShouldPropagate())
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := p.Tracer().Start(context.Background(), "poll")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}
