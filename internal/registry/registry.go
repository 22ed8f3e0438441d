// Package registry implements the fleet coordination core: instance
// identity, the heartbeat protocol against the shared store, the fleet
// read path with defensive metrics parsing, aggregation, and the
// degraded-mode fallback used when the store is unreachable.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
	"github.com/hugo-lorenzo-mato/fleetd/internal/logging"
	"github.com/hugo-lorenzo-mato/fleetd/internal/store"
)

// Registry owns this process's registration in the fleet and the read
// path over everyone else's. All methods are safe for concurrent use.
type Registry struct {
	store              *store.Store
	instanceID         string
	hostname           string
	stalenessThreshold time.Duration
	heartbeatInterval  time.Duration
	aggregateFields    []string
	logger             *logging.Logger

	mu        sync.RWMutex
	collector core.MetricsCollector
	probe     core.WorkloadProbe
}

// Option configures the registry.
type Option func(*Registry)

// WithInstanceID overrides the generated instance identity.
func WithInstanceID(id string) Option {
	return func(r *Registry) {
		if id != "" {
			r.instanceID = id
		}
	}
}

// WithHeartbeatInterval sets the periodic heartbeat cadence used by Run.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.heartbeatInterval = d
		}
	}
}

// WithStalenessThreshold sets the maximum heartbeat age for an instance
// to count as alive.
func WithStalenessThreshold(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.stalenessThreshold = d
		}
	}
}

// WithAggregateFields sets the metric keys summed into total_* values.
func WithAggregateFields(fields []string) Option {
	return func(r *Registry) {
		if len(fields) > 0 {
			r.aggregateFields = fields
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a registry bound to the shared store. The instance ID is
// generated fresh for this process lifetime unless overridden; identity
// is never reused across restarts.
func New(st *store.Store, opts ...Option) *Registry {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	r := &Registry{
		store:              st,
		instanceID:         uuid.NewString(),
		hostname:           hostname,
		stalenessThreshold: 30 * time.Second,
		heartbeatInterval:  5 * time.Second,
		aggregateFields:    []string{"processing_count", "pipelines_busy"},
		logger:             logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithInstance(r.instanceID)
	return r
}

// InstanceID returns this process's fleet identity.
func (r *Registry) InstanceID() string {
	return r.instanceID
}

// Hostname returns the reported hostname.
func (r *Registry) Hostname() string {
	return r.hostname
}

// StalenessThreshold returns the configured liveness window.
func (r *Registry) StalenessThreshold() time.Duration {
	return r.stalenessThreshold
}

// SetMetricsCollector registers the callable that reports this process's
// own metrics at heartbeat time. Replaces any previous collector; nil
// unregisters it.
func (r *Registry) SetMetricsCollector(c core.MetricsCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collector = c
}

// SetWorkloadProbe registers the callable that reports in-flight work at
// heartbeat time. Replaces any previous probe; nil unregisters it.
func (r *Registry) SetWorkloadProbe(p core.WorkloadProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probe = p
}

// Heartbeat announces this instance as alive, recording its workload and
// metrics snapshot in one atomic upsert. A nil metrics map records "{}",
// never NULL. Store failures propagate to the caller untouched: the
// registry never retries, so the caller owns backoff policy.
func (r *Registry) Heartbeat(ctx context.Context, processingCount int, pipelineBusy bool, metrics core.Metrics) error {
	if processingCount < 0 {
		return core.ErrValidation("NEGATIVE_COUNT", "processing count must be non-negative")
	}

	payload := "{}"
	if metrics != nil {
		encoded, err := json.Marshal(metrics)
		if err != nil {
			return core.ErrValidation("UNENCODABLE_METRICS", "metrics mapping is not JSON-encodable").WithCause(err)
		}
		payload = string(encoded)
	}

	return r.store.UpsertHeartbeat(ctx, r.instanceID, r.hostname, time.Now(), processingCount, pipelineBusy, payload)
}

// GetAllInstancesWithMetrics returns a snapshot of every alive instance.
// Staleness filtering happens in the store query. Metrics are normalized
// to a mapping no matter how the store hands them back; a row whose
// payload fails JSON parsing fails the whole call with a typed error
// rather than being silently dropped.
func (r *Registry) GetAllInstancesWithMetrics(ctx context.Context) ([]core.InstanceSnapshot, error) {
	rows, err := r.store.SelectAlive(ctx, r.stalenessThreshold)
	if err != nil {
		return nil, err
	}

	snapshots := make([]core.InstanceSnapshot, 0, len(rows))
	for _, row := range rows {
		metrics, err := NormalizeMetrics(row.Metrics)
		if err != nil {
			return nil, core.ErrMalformedMetrics(row.InstanceID,
				fmt.Sprintf("instance %s has an unparseable metrics payload", row.InstanceID)).WithCause(err)
		}
		snapshots = append(snapshots, core.InstanceSnapshot{
			InstanceID:      row.InstanceID,
			Hostname:        row.Hostname,
			LastHeartbeat:   row.LastHeartbeat,
			DrainRequested:  row.DrainRequested,
			ProcessingCount: row.ProcessingCount,
			PipelineBusy:    row.PipelineBusy,
			Metrics:         metrics,
		})
	}

	return snapshots, nil
}

// Draining reports whether an operator has asked this instance to stop
// accepting new work.
func (r *Registry) Draining(ctx context.Context) (bool, error) {
	row, err := r.store.GetInstance(ctx, r.instanceID)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			// Not registered yet means nobody could have flagged us.
			return false, nil
		}
		return false, err
	}
	return row.DrainRequested, nil
}

// SetDrainRequested flips the drain flag on any instance's record. The
// flag stays set until explicitly cleared.
func (r *Registry) SetDrainRequested(ctx context.Context, instanceID string, drain bool) error {
	if instanceID == "" {
		return core.ErrValidation("EMPTY_INSTANCE_ID", "instance id is required")
	}
	return r.store.SetDrainRequested(ctx, instanceID, drain)
}

// CollectLocalMetrics invokes the registered collector, containing any
// panic so a misbehaving collector can never take down a heartbeat or a
// fallback response. Always returns a non-nil mapping.
func (r *Registry) CollectLocalMetrics() core.Metrics {
	r.mu.RLock()
	collector := r.collector
	r.mu.RUnlock()

	if collector == nil {
		return core.Metrics{}
	}

	metrics := func() (m core.Metrics) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Warn("metrics collector panicked, reporting empty metrics",
					slog.Any("panic", rec))
				m = nil
			}
		}()
		return collector()
	}()
	if metrics == nil {
		return core.Metrics{}
	}
	return metrics
}

// NormalizeMetrics coerces a stored metrics value into a mapping. The
// shared column may come back as a native mapping, a JSON string (the
// SQLite TEXT column), raw bytes, or NULL. The type check happens here,
// once, so consumers only ever see a non-nil map.
func NormalizeMetrics(v any) (core.Metrics, error) {
	switch val := v.(type) {
	case nil:
		return core.Metrics{}, nil
	case core.Metrics:
		if val == nil {
			return core.Metrics{}, nil
		}
		return val, nil
	case map[string]any:
		if val == nil {
			return core.Metrics{}, nil
		}
		return core.Metrics(val), nil
	case string:
		return parseMetricsJSON([]byte(val))
	case []byte:
		return parseMetricsJSON(val)
	default:
		return nil, fmt.Errorf("unsupported metrics storage type %T", v)
	}
}

func parseMetricsJSON(data []byte) (core.Metrics, error) {
	if len(data) == 0 {
		return core.Metrics{}, nil
	}
	var m core.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		// Stored literal "null" normalizes like an absent payload.
		return core.Metrics{}, nil
	}
	return m, nil
}
