package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
	"github.com/hugo-lorenzo-mato/fleetd/internal/store"
)

func newTestRegistry(t *testing.T, opts ...Option) (*store.Store, *Registry) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, New(st, opts...)
}

func TestSetMetricsCollector_Replaces(t *testing.T) {
	_, reg := newTestRegistry(t)

	reg.SetMetricsCollector(func() core.Metrics { return core.Metrics{"a": 1} })
	assert.Equal(t, core.Metrics{"a": 1}, reg.CollectLocalMetrics())

	reg.SetMetricsCollector(func() core.Metrics { return core.Metrics{"b": 2} })
	assert.Equal(t, core.Metrics{"b": 2}, reg.CollectLocalMetrics())

	reg.SetMetricsCollector(nil)
	assert.Equal(t, core.Metrics{}, reg.CollectLocalMetrics())
}

func TestCollectLocalMetrics_ContainsPanic(t *testing.T) {
	_, reg := newTestRegistry(t)

	reg.SetMetricsCollector(func() core.Metrics {
		panic("collector exploded")
	})

	assert.Equal(t, core.Metrics{}, reg.CollectLocalMetrics())
}

func TestHeartbeat_SerializesMetricsAsJSON(t *testing.T) {
	_, reg := newTestRegistry(t)
	ctx := context.Background()

	err := reg.Heartbeat(ctx, 2, true, core.Metrics{"llm_active_calls": 5, "drain_mode": false})
	require.NoError(t, err)

	instances, err := reg.GetAllInstancesWithMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	inst := instances[0]
	assert.Equal(t, reg.InstanceID(), inst.InstanceID)
	assert.Equal(t, 2, inst.ProcessingCount)
	assert.True(t, inst.PipelineBusy)
	assert.Equal(t, float64(5), inst.Metrics["llm_active_calls"])
	assert.Equal(t, false, inst.Metrics["drain_mode"])
}

func TestHeartbeat_NilMetricsRecordsEmptyObject(t *testing.T) {
	st, reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Heartbeat(ctx, 0, false, nil))

	// The stored payload must be the literal empty JSON object, never NULL.
	row, err := st.GetInstance(ctx, reg.InstanceID())
	require.NoError(t, err)
	assert.Equal(t, "{}", row.Metrics)

	instances, err := reg.GetAllInstancesWithMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.NotNil(t, instances[0].Metrics)
	assert.Empty(t, instances[0].Metrics)
}

func TestHeartbeat_RejectsNegativeCount(t *testing.T) {
	_, reg := newTestRegistry(t)

	err := reg.Heartbeat(context.Background(), -1, false, nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestHeartbeat_IsIdempotent(t *testing.T) {
	_, reg := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Heartbeat(ctx, 7, true, core.Metrics{"x": 1}))
	}

	instances, err := reg.GetAllInstancesWithMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, 7, instances[0].ProcessingCount)
}

func TestConcurrentHeartbeats_DisjointInstances(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	defer st.Close()

	regA := New(st, WithInstanceID("inst-a"))
	regB := New(st, WithInstanceID("inst-b"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		reg, count := regA, 10
		if i == 1 {
			reg, count = regB, 20
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = reg.Heartbeat(ctx, count, false, core.Metrics{"n": count})
			}
		}()
	}
	wg.Wait()

	instances, err := regA.GetAllInstancesWithMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	byID := map[string]core.InstanceSnapshot{}
	for _, inst := range instances {
		byID[inst.InstanceID] = inst
	}
	assert.Equal(t, 10, byID["inst-a"].ProcessingCount)
	assert.Equal(t, 20, byID["inst-b"].ProcessingCount)
	assert.Equal(t, float64(10), byID["inst-a"].Metrics["n"])
	assert.Equal(t, float64(20), byID["inst-b"].Metrics["n"])
}

func TestGetAllInstancesWithMetrics_EmptyFleet(t *testing.T) {
	_, reg := newTestRegistry(t)

	instances, err := reg.GetAllInstancesWithMetrics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestGetAllInstancesWithMetrics_MalformedPayloadFailsCall(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.UpsertHeartbeat(ctx, "bad", "host-1", time.Now(), 0, false, "{not json"))

	reg := New(st)
	_, err = reg.GetAllInstancesWithMetrics(ctx)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatMalformed))
}

func TestGetAllInstancesWithMetrics_StoreFailure(t *testing.T) {
	st, reg := newTestRegistry(t)
	st.Close()

	_, err := reg.GetAllInstancesWithMetrics(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsStoreUnavailable(err))
}

func TestNormalizeMetrics(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    core.Metrics
		wantErr bool
	}{
		{"nil input", nil, core.Metrics{}, false},
		{"native mapping", map[string]any{"a": 1.0}, core.Metrics{"a": 1.0}, false},
		{"metrics mapping", core.Metrics{"a": 1.0}, core.Metrics{"a": 1.0}, false},
		{"json string", `{"llm_active_calls": 3}`, core.Metrics{"llm_active_calls": float64(3)}, false},
		{"json bytes", []byte(`{"x": true}`), core.Metrics{"x": true}, false},
		{"empty string", "", core.Metrics{}, false},
		{"json null literal", "null", core.Metrics{}, false},
		{"invalid json", "{broken", nil, true},
		{"unsupported type", 42, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMetrics(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDraining_RoundTrip(t *testing.T) {
	_, reg := newTestRegistry(t)
	ctx := context.Background()

	// Not yet registered: nobody could have flagged us.
	draining, err := reg.Draining(ctx)
	require.NoError(t, err)
	assert.False(t, draining)

	require.NoError(t, reg.Heartbeat(ctx, 0, false, nil))

	require.NoError(t, reg.SetDrainRequested(ctx, reg.InstanceID(), true))
	draining, err = reg.Draining(ctx)
	require.NoError(t, err)
	assert.True(t, draining)

	// The flag survives heartbeats until explicitly cleared.
	require.NoError(t, reg.Heartbeat(ctx, 1, true, nil))
	draining, err = reg.Draining(ctx)
	require.NoError(t, err)
	assert.True(t, draining)

	require.NoError(t, reg.SetDrainRequested(ctx, reg.InstanceID(), false))
	draining, err = reg.Draining(ctx)
	require.NoError(t, err)
	assert.False(t, draining)
}

func TestRun_HeartbeatsUntilCancelled(t *testing.T) {
	_, reg := newTestRegistry(t, WithHeartbeatInterval(10*time.Millisecond))
	reg.SetWorkloadProbe(func() (int, bool) { return 4, true })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	require.Eventually(t, func() bool {
		instances, err := reg.GetAllInstancesWithMetrics(context.Background())
		return err == nil && len(instances) == 1 && instances[0].ProcessingCount == 4
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
