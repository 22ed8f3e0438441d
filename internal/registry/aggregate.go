package registry

import (
	"context"
	"encoding/json"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

// Aggregate reduces a fleet snapshot to per-field sums. For each field,
// every instance contributes the value under that key in its metrics
// mapping; missing keys count 0, booleans count 1/0, and values that
// cannot be coerced to a number count 0. An empty snapshot yields 0 for
// every field. Pure function, no I/O.
func Aggregate(instances []core.InstanceSnapshot, fields []string) map[string]float64 {
	totals := make(map[string]float64, len(fields))
	for _, field := range fields {
		totals[field] = 0
	}

	for _, inst := range instances {
		for _, field := range fields {
			v, ok := inst.Metrics[field]
			if !ok {
				continue
			}
			if n, ok := core.NumericValue(v); ok {
				totals[field] += n
			}
		}
	}

	return totals
}

// AggregateResponse is the consumer-facing shape of a fleet metrics
// query. Totals flatten into the JSON object as total_<field> keys next
// to the instance list, matching what operators scrape.
type AggregateResponse struct {
	Instances      []core.InstanceSnapshot
	Degraded       bool
	DegradedReason string
	Totals         map[string]float64
}

// MarshalJSON flattens totals into the top-level object.
func (a AggregateResponse) MarshalJSON() ([]byte, error) {
	instances := a.Instances
	if instances == nil {
		instances = []core.InstanceSnapshot{}
	}

	out := map[string]any{
		"instances":      instances,
		"instance_count": len(instances),
		"degraded":       a.Degraded,
	}
	if a.DegradedReason != "" {
		out["degraded_reason"] = a.DegradedReason
	}
	for field, total := range a.Totals {
		out["total_"+field] = total
	}
	return json.Marshal(out)
}

// FleetMetrics runs the full read path: fleet snapshot, then aggregation
// over the configured field set. Store and parse failures propagate so
// the caller can decide between failing and degrading.
func (r *Registry) FleetMetrics(ctx context.Context) (AggregateResponse, error) {
	instances, err := r.GetAllInstancesWithMetrics(ctx)
	if err != nil {
		return AggregateResponse{}, err
	}
	return AggregateResponse{
		Instances: instances,
		Totals:    Aggregate(instances, r.aggregateFields),
	}, nil
}
