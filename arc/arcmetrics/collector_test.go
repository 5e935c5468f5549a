package arcmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arckit/arc"
)

// gather registers c on a pedantic registry and returns metric values by name.
func gather(t testing.TB, c prometheus.Collector) map[string]*dto.Metric {
	t.Helper()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.Metric, len(families))
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1, "metric %s", mf.GetName())
		out[mf.GetName()] = mf.GetMetric()[0]
	}
	return out
}

func TestCollector_ReflectsStats(t *testing.T) {
	r := arc.NewRegistry(nil)
	t.Cleanup(func() { _ = r.Close() })

	p, err := r.Allocate(100)
	require.NoError(t, err)
	_, err = r.Retain(p)
	require.NoError(t, err)
	require.NoError(t, r.Release(p))
	q, err := r.Allocate(10)
	require.NoError(t, err)
	require.NoError(t, r.Release(q))

	m := gather(t, NewCollector(r, "", prometheus.Labels{"backend": "go"}))
	require.Len(t, m, 10)

	assert.Equal(t, 2.0, m["arc_allocations_total"].GetCounter().GetValue())
	assert.Equal(t, 1.0, m["arc_retains_total"].GetCounter().GetValue())
	assert.Equal(t, 2.0, m["arc_releases_total"].GetCounter().GetValue())
	assert.Equal(t, 1.0, m["arc_frees_total"].GetCounter().GetValue())
	assert.Equal(t, 1.0, m["arc_live_blocks"].GetGauge().GetValue())
	assert.Equal(t, 100.0, m["arc_live_bytes"].GetGauge().GetValue())
	assert.Equal(t, 128.0, m["arc_backend_in_use_bytes"].GetGauge().GetValue())
	assert.Zero(t, m["arc_violations_total"].GetCounter().GetValue())

	labels := m["arc_live_blocks"].GetLabel()
	require.Len(t, labels, 1)
	assert.Equal(t, "backend", labels[0].GetName())
	assert.Equal(t, "go", labels[0].GetValue())

	require.NoError(t, r.Release(p))
}

func TestCollector_CountsViolations(t *testing.T) {
	r := arc.NewRegistry(nil)
	t.Cleanup(func() { _ = r.Close() })

	p, err := r.Allocate(8)
	require.NoError(t, err)
	require.ErrorIs(t, r.Deallocate(p), arc.ErrMemory)

	m := gather(t, NewCollector(r, "test", nil))
	assert.Equal(t, 1.0, m["test_violations_total"].GetCounter().GetValue())

	require.NoError(t, r.Release(p))
}
