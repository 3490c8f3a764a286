package metrics

import (
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetric(t *testing.T, r *Registry, fqName string) *dto.MetricFamily {
	t.Helper()
	families, err := r.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == fqName {
			return mf
		}
	}
	return nil
}

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("mux", "push_total", 1, nil)
	r.IncrCounter("mux", "push_total", 2, nil)

	mf := findMetric(t, r, "mux_push_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, float64(3), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestCounterDimensionsSplitSeries(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("mux", "push_reject_total", 1, Dimension{"channel": "Reliable"})
	r.IncrCounter("mux", "push_reject_total", 5, Dimension{"channel": "Unreliable"})

	mf := findMetric(t, r, "mux_push_reject_total")
	require.NotNil(t, mf)
	assert.Len(t, mf.GetMetric(), 2)
}

func TestCounterMismatchedDimensionsDropped(t *testing.T) {
	r := NewRegistry()
	r.IncrCounter("mux", "send_failure_total", 1, Dimension{"stage": "begin"})

	// The first report fixed the label set; a different set cannot attach.
	r.IncrCounter("mux", "send_failure_total", 1, Dimension{"other": "x"})

	mf := findMetric(t, r, "mux_send_failure_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestGaugeTracksLatestValue(t *testing.T) {
	r := NewRegistry()
	r.UpdateGauge("mux", "current_connections", 5, nil)
	r.UpdateGauge("mux", "current_connections", 2, nil)

	mf := findMetric(t, r, "mux_current_connections")
	require.NotNil(t, mf)
	assert.Equal(t, float64(2), mf.GetMetric()[0].GetGauge().GetValue())
}

func TestPackageLevelHelpersUseDefaultRegistry(t *testing.T) {
	IncrCounterWithGroup("muxtest", "helper_total", 7)
	UpdateGaugeWithDimGroup("muxtest", "helper_gauge", 3, Dimension{"kind": "test"})

	mf := findMetric(t, Default(), "muxtest_helper_total")
	require.NotNil(t, mf)
	assert.Equal(t, float64(7), mf.GetMetric()[0].GetCounter().GetValue())

	mf = findMetric(t, Default(), "muxtest_helper_gauge")
	require.NotNil(t, mf)
	assert.Equal(t, float64(3), mf.GetMetric()[0].GetGauge().GetValue())
}

func TestHandlerServesExposition(t *testing.T) {
	IncrCounterWithGroup("muxtest", "exposed_total", 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "muxtest_exposed_total")
}
