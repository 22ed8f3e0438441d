package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/fleetd/internal/logging"
	"github.com/hugo-lorenzo-mato/fleetd/internal/tui"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live fleet dashboard",
	Long: `Watch the fleet in a live terminal dashboard: alive instances,
their workload and metrics, and the aggregate totals. Shows a degraded
banner when the shared store is unreachable.`,
	RunE: runTop,
}

func init() {
	rootCmd.AddCommand(topCmd)
}

func runTop(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The dashboard owns the terminal; keep registry logging quiet.
	st, reg, err := openRegistry(cfg, logging.NewNop())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	p := tea.NewProgram(tui.New(reg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
