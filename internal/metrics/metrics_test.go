package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func TestRegistry_CountersObservable(t *testing.T) {
	r := NewRegistry()
	promReg := prometheus.NewRegistry()
	require.NoError(t, r.Register(promReg))

	r.SourceFailures.WithLabelValues("limit_up_pool").Inc()
	r.SourceFailures.WithLabelValues("limit_up_pool").Inc()
	r.ReviewsCreated.WithLabelValues("created").Inc()
	r.CacheHits.Inc()
	r.StepDuration.WithLabelValues("market_snapshot", "ok").Observe(0.2)

	families := gather(t, promReg)

	failures := families["redboard_source_failures_total"]
	require.NotNil(t, failures)
	require.Len(t, failures.Metric, 1)
	assert.Equal(t, 2.0, failures.Metric[0].GetCounter().GetValue())
	assert.Equal(t, "step", failures.Metric[0].Label[0].GetName())
	assert.Equal(t, "limit_up_pool", failures.Metric[0].Label[0].GetValue())

	created := families["redboard_reviews_created_total"]
	require.NotNil(t, created)
	assert.Equal(t, 1.0, created.Metric[0].GetCounter().GetValue())

	duration := families["redboard_step_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.Metric[0].GetHistogram().GetSampleCount())
}

func TestRegistry_DoubleRegisterFails(t *testing.T) {
	r := NewRegistry()
	promReg := prometheus.NewRegistry()
	require.NoError(t, r.Register(promReg))
	assert.Error(t, r.Register(promReg))
}

func TestDefault_Singleton(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)

	// Usable without further setup.
	a.StepDuration.WithLabelValues("burst_pool", "ok").Observe(0.01)
}
