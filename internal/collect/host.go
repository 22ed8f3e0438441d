// Package collect provides the default metrics collector wired into the
// registry by fleetd serve. Hosts embedding the registry as a library
// can replace it with their own collector.
package collect

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
)

// HostCollector reports host and process resource usage as a flat
// metrics mapping. Collection is best-effort: any probe that fails is
// simply left out of the mapping for that cycle.
type HostCollector struct {
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64
}

// NewHostCollector creates a host collector.
func NewHostCollector() *HostCollector {
	return &HostCollector{}
}

// Collect gathers the current host metrics. Satisfies
// core.MetricsCollector via method value.
func (c *HostCollector) Collect() core.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics := core.Metrics{
		"goroutines": runtime.NumGoroutine(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics["heap_mb"] = float64(ms.HeapAlloc) / 1024 / 1024

	if vm, err := mem.VirtualMemory(); err == nil {
		metrics["mem_percent"] = vm.UsedPercent
		metrics["mem_used_mb"] = float64(vm.Used) / 1024 / 1024
	}

	if pct, ok := c.cpuPercent(); ok {
		metrics["cpu_percent"] = pct
	}

	if avg, err := load.Avg(); err == nil {
		metrics["load_avg_1"] = avg.Load1
	}

	return metrics
}

// cpuPercent derives usage from cumulative cpu.Times deltas between
// calls. The first call only seeds the baseline, so it reports nothing.
func (c *HostCollector) cpuPercent() (float64, bool) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0, false
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idleTime := t.Idle + t.Iowait

	defer func() {
		c.lastCPUTotal = total
		c.lastCPUIdle = idleTime
	}()

	if c.lastCPUTotal <= 0 {
		return 0, false
	}
	totalDelta := total - c.lastCPUTotal
	idleDelta := idleTime - c.lastCPUIdle
	if totalDelta <= 0 {
		return 0, false
	}
	return (1 - idleDelta/totalDelta) * 100, true
}
