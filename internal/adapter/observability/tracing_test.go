package observability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/config"
)

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	cfg := config.Config{OTELServiceName: "trend-harvester"}
	shutdown, err := observability.SetupTracing(cfg)
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}
