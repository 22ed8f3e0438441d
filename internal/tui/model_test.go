package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/fleetd/internal/core"
	"github.com/hugo-lorenzo-mato/fleetd/internal/registry"
)

func TestInstanceRows(t *testing.T) {
	resp := registry.AggregateResponse{
		Instances: []core.InstanceSnapshot{
			{
				InstanceID:      "0c0ffee0-aaaa-bbbb-cccc-000000000001",
				Hostname:        "worker-1",
				LastHeartbeat:   time.Now(),
				ProcessingCount: 3,
				PipelineBusy:    true,
				DrainRequested:  true,
				Metrics:         core.Metrics{"cpu_percent": 12.5},
			},
		},
	}

	rows := instanceRows(resp)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row[3] != "3" {
		t.Errorf("work column = %q, want 3", row[3])
	}
	if row[4] != "yes" {
		t.Errorf("busy column = %q, want yes", row[4])
	}
	if !strings.Contains(row[6], "cpu_percent=12.5") {
		t.Errorf("metrics column = %q, want cpu_percent summary", row[6])
	}
}

func TestTotalsLine(t *testing.T) {
	got := totalsLine(map[string]float64{"b_field": 2, "a_field": 1.50})
	want := "total_a_field=1.5  total_b_field=2"
	if got != want {
		t.Errorf("totalsLine() = %q, want %q", got, want)
	}

	if got := totalsLine(nil); got != "no totals configured" {
		t.Errorf("totalsLine(nil) = %q", got)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("short", 10); got != "short" {
		t.Errorf("shorten() = %q, want unchanged", got)
	}
	got := shorten("a-very-long-instance-identifier", 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("shorten() = %q, want 10 runes ending in ellipsis", got)
	}
}

func TestTrimFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2, "2"},
		{1.5, "1.5"},
		{1.25, "1.25"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := trimFloat(tt.in); got != tt.want {
			t.Errorf("trimFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
