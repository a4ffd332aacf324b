package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
	"github.com/spf13/cobra"
)

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Halt the target hart",
	Long: `Request a debug halt and wait for the hart to stop, then report why it
stopped and where.

Examples:
  otd halt --adapter cmsisdap
  otd halt --adapter simulator`,
	RunE: runHalt,
}

func init() {
	rootCmd.AddCommand(haltCmd)
	addConnectionFlags(haltCmd)
}

const haltPollAttempts = 64

func runHalt(cmd *cobra.Command, args []string) error {
	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := tgt.HaltRequest(); err != nil {
		return fmt.Errorf("halt request failed: %w", err)
	}

	reason := target.Running
	for i := 0; i < haltPollAttempts; i++ {
		reason, err = tgt.HaltPoll()
		if err != nil {
			return fmt.Errorf("halt poll failed: %w", err)
		}
		if reason != target.Running {
			break
		}
	}
	if reason == target.Running {
		return fmt.Errorf("hart did not halt")
	}

	return reportStop(tgt, reason)
}

// reportStop prints the stop reason and current pc.
func reportStop(tgt target.Target, reason target.HaltReason) error {
	fmt.Printf("Halted: %s\n", reason)
	pc, err := tgt.RegRead(32)
	if err != nil {
		return fmt.Errorf("failed to read pc: %w", err)
	}
	fmt.Printf("  pc = 0x%08X\n", pc)
	if tgt.CheckError() {
		return fmt.Errorf("transport error during halt; state is unreliable")
	}
	return nil
}
