package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/fleetd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration to .fleetd/config.yaml.
The file is written atomically and an existing file is never overwritten
unless --force is given.`,
	RunE: runInit,
}

var (
	initPath  string
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initPath, "path", ".fleetd/config.yaml", "Where to write the config file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(_ *cobra.Command, _ []string) error {
	if err := config.WriteFile(initPath, config.Default(), initForce); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", initPath)
	return nil
}
