package metrics_test

import (
	"testing"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/corechain/node/metrics"
)

func TestGetOrRegisterGaugeIsNoOpWhenDisabled(t *testing.T) {
	metrics.Enabled = false
	g := metrics.GetOrRegisterGauge("test/disabled/gauge")
	g.Update(42)
	require.Zero(t, g.Value(), "a disabled registry's gauge must discard updates")
}

func TestGetOrRegisterGaugeTracksValueWhenEnabled(t *testing.T) {
	metrics.Enabled = true
	defer func() { metrics.Enabled = false }()

	g := metrics.GetOrRegisterGauge("test/enabled/gauge")
	g.Update(7)
	require.EqualValues(t, 7, g.Value())

	again := metrics.GetOrRegisterGauge("test/enabled/gauge")
	require.EqualValues(t, 7, again.Value(), "GetOrRegisterGauge must return the same registered gauge on a second call")
}

func TestGetOrRegisterCounterIsNoOpWhenDisabled(t *testing.T) {
	metrics.Enabled = false
	c := metrics.GetOrRegisterCounter("test/disabled/counter")
	c.Inc(5)
	require.Zero(t, c.Count())
}

func TestDefaultRegistryIsAGoMetricsRegistry(t *testing.T) {
	var _ gometrics.Registry = metrics.DefaultRegistry
}
