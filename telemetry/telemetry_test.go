package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-service")
	require.NotNil(t, logger)
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("service", "aclscan").Logger()
	logger := &Logger{Logger: base}

	logger.LogScanComplete(context.Background(), "/srv/data", 7, 12.5)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/srv/data", entry["path"])
	assert.Equal(t, float64(7), entry["records"])
	assert.Equal(t, "scan", entry["operation"])
}

func TestInitOTEL(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := InitOTEL(context.Background(), Config{
		ServiceName:    "aclscan-test",
		ServiceVersion: "0.0.0",
		Environment:    "test",
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	assert.NotNil(t, PrometheusRegistry)
	assert.NotNil(t, ReportsWritten)
	assert.NotNil(t, StorageRevision)
}
