package registry

import (
	"time"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

// Fallback builds a degraded, single-instance response for when the
// shared store cannot serve a fleet read. It bypasses the store entirely:
// identity comes from the registry, metrics from the local collector
// (empty if unset or panicking). It never fails; reason carries the
// store error for the response body.
func (r *Registry) Fallback(reason error) AggregateResponse {
	metrics := r.CollectLocalMetrics()

	local := core.InstanceSnapshot{
		InstanceID:    r.instanceID,
		Hostname:      r.hostname,
		LastHeartbeat: time.Now().UTC(),
		Metrics:       metrics,
	}

	resp := AggregateResponse{
		Instances: []core.InstanceSnapshot{local},
		Degraded:  true,
		Totals:    Aggregate([]core.InstanceSnapshot{local}, r.aggregateFields),
	}
	if reason != nil {
		resp.DegradedReason = reason.Error()
	}
	return resp
}
