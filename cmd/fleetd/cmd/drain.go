package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain <instance-id>",
	Short: "Ask an instance to stop accepting new work",
	Long: `Set the drain flag on an instance's registry record. The instance
reads the flag on its next heartbeat cycle and stops accepting new work;
the flag stays set until cleared with --clear.`,
	Args: cobra.ExactArgs(1),
	RunE: runDrain,
}

var drainClear bool

func init() {
	rootCmd.AddCommand(drainCmd)
	drainCmd.Flags().BoolVar(&drainClear, "clear", false, "Clear the drain flag instead of setting it")
}

func runDrain(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, reg, err := openRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	instanceID := args[0]
	if err := reg.SetDrainRequested(cmd.Context(), instanceID, !drainClear); err != nil {
		return err
	}

	if drainClear {
		fmt.Printf("Drain flag cleared for %s\n", instanceID)
	} else {
		fmt.Printf("Drain requested for %s\n", instanceID)
	}
	return nil
}
