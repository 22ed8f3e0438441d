package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the fleet at a glance",
	Long:  "Display every alive instance and the fleet-wide metric totals.",
	RunE:  runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	resp, err := reg.FleetMetrics(cmd.Context())
	if err != nil {
		return err
	}

	if statusJSON {
		return outputJSON(resp)
	}

	if len(resp.Instances) == 0 {
		fmt.Println("No alive instances")
		return nil
	}

	fmt.Printf("Alive instances: %d (staleness threshold %s)\n\n",
		len(resp.Instances), reg.StalenessThreshold())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tHOST\tLAST HEARTBEAT\tWORK\tBUSY\tDRAIN")
	fmt.Fprintln(w, "--------\t----\t--------------\t----\t----\t-----")

	for _, inst := range resp.Instances {
		busy := "-"
		if inst.PipelineBusy {
			busy = "yes"
		}
		drain := "-"
		if inst.DrainRequested {
			drain = "requested"
		}
		fmt.Fprintf(w, "%s\t%s\t%s ago\t%d\t%s\t%s\n",
			inst.InstanceID, inst.Hostname,
			time.Since(inst.LastHeartbeat).Truncate(time.Second),
			inst.ProcessingCount, busy, drain)
	}
	w.Flush()

	fields := make([]string, 0, len(resp.Totals))
	for field := range resp.Totals {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	fmt.Println()
	for _, field := range fields {
		fmt.Printf("total_%s: %g\n", field, resp.Totals[field])
	}

	return nil
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
