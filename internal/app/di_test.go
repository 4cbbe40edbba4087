package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/eventflow/internal/config"
	"github.com/allisson/eventflow/internal/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:                "error",
		DBDriver:                "postgres",
		BreakerFailureThreshold: 3,
		BreakerResetTimeout:     time.Minute,
		MetricsNamespace:        "eventflow",
	}
}

func TestContainer_Config(t *testing.T) {
	cfg := testConfig()
	container := NewContainer(cfg)

	assert.Same(t, cfg, container.Config())
}

func TestContainer_Logger_IsSingleton(t *testing.T) {
	container := NewContainer(testConfig())

	logger1 := container.Logger()
	logger2 := container.Logger()

	require.NotNil(t, logger1)
	assert.Same(t, logger1, logger2)
}

func TestContainer_Breaker_IsSingleton(t *testing.T) {
	container := NewContainer(testConfig())

	breaker1 := container.Breaker()
	breaker2 := container.Breaker()

	require.NotNil(t, breaker1)
	assert.Same(t, breaker1, breaker2)
}

func TestContainer_ConsumerMetrics_NoOpWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	container := NewContainer(cfg)

	consumerMetrics, err := container.ConsumerMetrics()

	require.NoError(t, err)
	assert.IsType(t, &metrics.NoOpConsumerMetrics{}, consumerMetrics)
}

func TestContainer_MetricsServer_NilWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = false
	container := NewContainer(cfg)

	server, err := container.MetricsServer()

	require.NoError(t, err)
	assert.Nil(t, server)
}

func TestContainer_SignupPoller_RequiresQueueURL(t *testing.T) {
	cfg := testConfig()
	cfg.SignupQueueURL = ""
	container := NewContainer(cfg)

	_, err := container.SignupPoller()

	assert.ErrorContains(t, err, "queue url for signup poller is not configured")
}
