package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Duplicated()
	m.Duplicated()
	m.DuplicateFailed()
	m.LayerApplied("rectangle")
	m.LayerFailed(ReasonUnknown)
	m.ImageComposed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.duplicated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicateFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.layersApplied.WithLabelValues("rectangle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.layerFailures.WithLabelValues(ReasonUnknown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imagesComposed))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Duplicated()
	m.LayerFailed(ReasonParse)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.LayerApplied("grid")
	path := filepath.Join(t.TempDir(), "glworb.prom")

	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `glworb_layers_applied_total{operation="grid"} 1`)
}

func TestTotals(t *testing.T) {
	m := New()
	m.LayerFailed(ReasonParse)
	m.LayerFailed(ReasonDecode)
	m.Duplicated()

	totals, err := m.Totals()
	require.NoError(t, err)
	assert.Equal(t, 2.0, totals["glworb_layer_failures_total"])
	assert.Equal(t, 1.0, totals["glworb_entries_duplicated_total"])
	_, ok := totals["glworb_layers_applied_total"]
	assert.False(t, ok, "vectors without series are not gathered")

	var empty *Metrics
	totals, err = empty.Totals()
	require.NoError(t, err)
	assert.Empty(t, totals)
}
