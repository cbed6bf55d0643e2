package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/observability"
)

func TestInitTracing(t *testing.T) {
	ctx := context.Background()

	shutdown, err := observability.InitTracing(ctx, config.TraceConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))

	_, err = observability.InitTracing(ctx, config.TraceConfig{Enabled: true, Exporter: "zipkin"})
	require.Error(t, err)

	shutdown, err = observability.InitTracing(ctx, config.TraceConfig{Enabled: true, Exporter: "stdout", ServiceName: "clood-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
}
