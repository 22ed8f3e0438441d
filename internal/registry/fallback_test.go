package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

func TestFallback_ReportsLocalInstanceOnly(t *testing.T) {
	_, reg := newTestRegistry(t,
		WithInstanceID("inst-local"),
		WithAggregateFields([]string{"processing_count"}),
	)
	reg.SetMetricsCollector(func() core.Metrics {
		return core.Metrics{"processing_count": 6}
	})

	resp := reg.Fallback(errors.New("database is locked"))

	assert.True(t, resp.Degraded)
	assert.Equal(t, "database is locked", resp.DegradedReason)
	require.Len(t, resp.Instances, 1)
	assert.Equal(t, "inst-local", resp.Instances[0].InstanceID)
	assert.Equal(t, float64(6), resp.Totals["processing_count"])
}

func TestFallback_NoCollectorStillResponds(t *testing.T) {
	_, reg := newTestRegistry(t, WithAggregateFields([]string{"processing_count"}))

	resp := reg.Fallback(nil)

	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.DegradedReason)
	require.Len(t, resp.Instances, 1)
	assert.NotNil(t, resp.Instances[0].Metrics)
	assert.Equal(t, float64(0), resp.Totals["processing_count"])
}

func TestFallback_PanickingCollectorStillResponds(t *testing.T) {
	_, reg := newTestRegistry(t)
	reg.SetMetricsCollector(func() core.Metrics { panic("boom") })

	resp := reg.Fallback(errors.New("store down"))

	assert.True(t, resp.Degraded)
	require.Len(t, resp.Instances, 1)
	assert.Empty(t, resp.Instances[0].Metrics)
}
