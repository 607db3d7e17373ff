package otel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Nil(t, p.MetricsHandler())
	assert.Equal(t, noop.Meter{}, p.Meter("x"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutSink(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "formationd"})
	assert.Error(t, err)
}

func TestNew_FileLogs(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "formationd", LogWriter: &buf})
	require.NoError(t, err)

	assert.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_PrometheusServesMeters(t *testing.T) {
	p, err := New(Config{ServiceName: "formationd", Prometheus: true})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.Nil(t, p.LoggerProvider(), "logs stay disabled")

	counter, err := p.Meter("test").Int64Counter("formation.couples")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(p.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "formation_couples")
	assert.Contains(t, string(body), "go_goroutines")
}
