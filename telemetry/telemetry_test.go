package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementsRecord(t *testing.T) {
	m := New()
	m.CreateObservableHistogram("test_histogram", "test histogram")
	m.CreateObservableGauge("test_gauge", "test gauge")
	m.CreateObservableCounter("test_counter", "test counter")

	assert.True(t, m.RecordHistogramTime("test_histogram", time.Millisecond))
	assert.True(t, m.SetGauge("test_gauge", 7))
	assert.True(t, m.IncrementCounter("test_counter"))

	families, err := m.Gatherer().Gather()
	require.Nil(t, err)
	values := make(map[string]float64)
	for _, f := range families {
		metric := f.GetMetric()[0]
		switch {
		case metric.GetGauge() != nil:
			values[f.GetName()] = metric.GetGauge().GetValue()
		case metric.GetCounter() != nil:
			values[f.GetName()] = metric.GetCounter().GetValue()
		case metric.GetHistogram() != nil:
			values[f.GetName()] = float64(metric.GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, map[string]float64{"test_histogram": 1, "test_gauge": 7, "test_counter": 1}, values)
}

func TestMeasurementsUnknownName(t *testing.T) {
	m := New()
	assert.False(t, m.RecordHistogramTime("missing", time.Second))
	assert.False(t, m.SetGauge("missing", 1))
	assert.False(t, m.IncrementCounter("missing"))
}

func TestMeasurementsIndependentInstances(t *testing.T) {
	for i := 0; i < 3; i++ {
		m := New()
		m.CreateObservableGauge("same_name", "same name in every instance")
		m.CreateObservableGauge("same_name", "created twice in one instance")
		assert.True(t, m.SetGauge("same_name", float64(i)))
	}
}

func TestRunInvalidPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := Run(ctx, cancel, Config{Port: 70000}, New())
	assert.NotNil(t, err)
}
