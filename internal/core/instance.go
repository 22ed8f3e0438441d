// Package core defines the domain types shared by the fleet registry,
// store adapter, and HTTP layer.
package core

import (
	"strconv"
	"strings"
	"time"
)

// Metrics is an opaque mapping of metric name to a numeric or boolean
// value, reported by one instance at heartbeat time. The registry never
// interprets individual keys; only the aggregator does, and only for the
// configured field set.
type Metrics map[string]any

// MetricsCollector returns the calling process's own current metrics.
// It is a runtime-swappable capability supplied by the host process;
// a nil collector means the instance reports no metrics.
type MetricsCollector func() Metrics

// WorkloadProbe reports the instance's in-flight work count and a coarse
// busy signal at heartbeat time.
type WorkloadProbe func() (processingCount int, pipelineBusy bool)

// InstanceSnapshot is one alive instance as observed by a fleet read.
// Metrics is always non-nil; absent or NULL stored payloads normalize
// to an empty map at the read boundary.
type InstanceSnapshot struct {
	InstanceID      string    `json:"instance_id"`
	Hostname        string    `json:"hostname"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	DrainRequested  bool      `json:"drain_requested"`
	ProcessingCount int       `json:"processing_count"`
	PipelineBusy    bool      `json:"pipeline_busy"`
	Metrics         Metrics   `json:"metrics"`
}

// NumericValue coerces a metrics value to float64 for aggregation.
// Booleans count as 1/0; anything non-numeric counts as 0. The bool flag
// reports whether the value was usable.
func NumericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
