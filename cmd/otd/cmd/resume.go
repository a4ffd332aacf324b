package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the target hart",
	Long: `Release a halted hart and let it run freely.

Examples:
  otd resume --adapter cmsisdap`,
	RunE: runResume,
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Single-step the target hart",
	Long: `Execute one instruction on a halted hart, then report where it stopped.

Examples:
  otd step --adapter cmsisdap`,
	RunE: runStep,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stepCmd)
	addConnectionFlags(resumeCmd)
	addConnectionFlags(stepCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := tgt.Resume(false); err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	fmt.Println("Resumed")
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := tgt.Resume(true); err != nil {
		return fmt.Errorf("step failed: %w", err)
	}

	for i := 0; i < haltPollAttempts; i++ {
		reason, err := tgt.HaltPoll()
		if err != nil {
			return fmt.Errorf("halt poll failed: %w", err)
		}
		if reason != target.Running {
			return reportStop(tgt, reason)
		}
	}
	return fmt.Errorf("hart did not stop after step")
}
