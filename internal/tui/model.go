package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/fleetd/internal/registry"
)

// refreshInterval is how often the dashboard re-reads the fleet.
const refreshInterval = 2 * time.Second

// fleetMsg carries one completed fleet read into the update loop.
type fleetMsg struct {
	resp registry.AggregateResponse
}

type tickMsg time.Time

// Model is the bubbletea model for the fleet dashboard. It polls the
// registry on a fixed cadence; a failed read flips the view into the
// degraded single-instance mode rather than exiting.
type Model struct {
	registry *registry.Registry
	table    table.Model
	resp     registry.AggregateResponse
	lastRead time.Time
	width    int
	quitting bool
}

// New creates a dashboard model bound to the registry.
func New(reg *registry.Registry) Model {
	columns := []table.Column{
		{Title: "INSTANCE", Width: 14},
		{Title: "HOST", Width: 16},
		{Title: "AGE", Width: 6},
		{Title: "WORK", Width: 6},
		{Title: "BUSY", Width: 5},
		{Title: "DRAIN", Width: 6},
		{Title: "METRICS", Width: 40},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(ColorText).BorderForeground(ColorBorder)
	styles.Selected = styles.Selected.Foreground(ColorText).Background(ColorBorder)
	t.SetStyles(styles)

	return Model{
		registry: reg,
		table:    t,
	}
}

// Init starts the first read and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.readFleet, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// readFleet performs one fleet read, degrading on error.
func (m Model) readFleet() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
	defer cancel()

	resp, err := m.registry.FleetMetrics(ctx)
	if err != nil {
		return fleetMsg{resp: m.registry.Fallback(err)}
	}
	return fleetMsg{resp: resp}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.readFleet
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.readFleet, tick())
	case fleetMsg:
		m.resp = msg.resp
		m.lastRead = time.Now()
		m.table.SetRows(instanceRows(msg.resp))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := headerStyle.Render(fmt.Sprintf("fleetd — %d instance(s)", len(m.resp.Instances)))
	if m.resp.Degraded {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header,
			degradedStyle.Render("DEGRADED: store unreachable, local metrics only"))
	}
	b.WriteString(header + "\n")
	b.WriteString(totalsStyle.Render(totalsLine(m.resp.Totals)) + "\n")
	b.WriteString(tableBorderStyle.Render(m.table.View()) + "\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("last read %s  •  r refresh  •  q quit",
		m.lastRead.Format("15:04:05"))))

	return b.String()
}

func instanceRows(resp registry.AggregateResponse) []table.Row {
	rows := make([]table.Row, 0, len(resp.Instances))
	for _, inst := range resp.Instances {
		busy := "-"
		if inst.PipelineBusy {
			busy = "yes"
		}
		drain := "-"
		if inst.DrainRequested {
			drain = drainStyle.Render("DRAIN")
		}
		rows = append(rows, table.Row{
			shorten(inst.InstanceID, 14),
			shorten(inst.Hostname, 16),
			age(inst.LastHeartbeat),
			fmt.Sprintf("%d", inst.ProcessingCount),
			busy,
			drain,
			metricsSummary(inst.Metrics, 40),
		})
	}
	return rows
}

func totalsLine(totals map[string]float64) string {
	if len(totals) == 0 {
		return "no totals configured"
	}
	fields := make([]string, 0, len(totals))
	for field := range totals {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("total_%s=%s", field, trimFloat(totals[field])))
	}
	return strings.Join(parts, "  ")
}

func metricsSummary(metrics map[string]any, max int) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, metrics[k]))
	}
	return shorten(strings.Join(parts, " "), max)
}

func age(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
