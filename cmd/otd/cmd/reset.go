package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the target",
	Long: `Request a debug-initiated reset of the target hart.

Examples:
  otd reset --adapter cmsisdap`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	addConnectionFlags(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := tgt.Reset(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Println("Reset requested")
	return nil
}
