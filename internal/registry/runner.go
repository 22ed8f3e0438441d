package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

// Run drives the periodic heartbeat until ctx is cancelled. The first
// beat fires immediately so the instance shows up in fleet reads without
// waiting a full interval. A failed cycle is logged and skipped — the
// next tick is the retry policy, matching the best-effort liveness
// contract.
func (r *Registry) Run(ctx context.Context) error {
	r.logger.Info("heartbeat loop starting",
		slog.Duration("interval", r.heartbeatInterval),
		slog.Duration("staleness_threshold", r.stalenessThreshold))

	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	r.beat(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("heartbeat loop stopping")
			return nil
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

// beat performs one heartbeat cycle: probe workload, collect metrics,
// fold the workload columns into the metrics payload so they aggregate
// fleet-wide, and upsert.
func (r *Registry) beat(ctx context.Context) {
	r.mu.RLock()
	probe := r.probe
	r.mu.RUnlock()

	processingCount := 0
	pipelineBusy := false
	if probe != nil {
		processingCount, pipelineBusy = probe()
		if processingCount < 0 {
			processingCount = 0
		}
	}

	metrics := r.CollectLocalMetrics()
	if _, ok := metrics["processing_count"]; !ok {
		metrics["processing_count"] = processingCount
	}
	if _, ok := metrics["pipelines_busy"]; !ok {
		busy := 0
		if pipelineBusy {
			busy = 1
		}
		metrics["pipelines_busy"] = busy
	}

	beatCtx, cancel := context.WithTimeout(ctx, r.heartbeatInterval)
	defer cancel()

	if err := r.Heartbeat(beatCtx, processingCount, pipelineBusy, metrics); err != nil {
		// Store outages show up here on every tick; keep it at warn so a
		// flapping store doesn't page anyone through error-level alerts.
		if core.IsStoreUnavailable(err) {
			r.logger.Warn("heartbeat skipped, store unavailable", slog.String("error", err.Error()))
			return
		}
		r.logger.Error("heartbeat failed", slog.String("error", err.Error()))
	}
}
