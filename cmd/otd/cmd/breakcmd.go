package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
	"github.com/spf13/cobra"
)

var (
	breakKind  string
	breakClear bool
	breakSlot  uint32
)

var breakCmd = &cobra.Command{
	Use:   "break <addr>",
	Short: "Set or clear hardware break/watchpoints",
	Long: `Program a hardware trigger to stop the hart when an address is executed,
read or written. The driver claims the lowest free trigger slot and prints
it; pass that slot back with --clear to release the trigger.

Examples:
  otd break 0x80000100                      # breakpoint on execution
  otd break 0x80002000 --kind write         # watchpoint on stores
  otd break 0x80002000 --kind access        # watchpoint on loads and stores
  otd break 0 --clear --slot 1              # release trigger slot 1`,
	Args: cobra.ExactArgs(1),
	RunE: runBreak,
}

func init() {
	rootCmd.AddCommand(breakCmd)
	addConnectionFlags(breakCmd)

	breakCmd.Flags().StringVarP(&breakKind, "kind", "k", "exec",
		"trigger kind (exec, write, read, access)")
	breakCmd.Flags().BoolVar(&breakClear, "clear", false,
		"clear the trigger in --slot instead of setting one")
	breakCmd.Flags().Uint32Var(&breakSlot, "slot", 0,
		"trigger slot to clear (from a previous set)")
}

func parseBreakKind(s string) (target.BreakKind, error) {
	switch s {
	case "exec", "execute", "bp":
		return target.BreakExecute, nil
	case "write", "w":
		return target.WatchWrite, nil
	case "read", "r":
		return target.WatchRead, nil
	case "access", "rw":
		return target.WatchAccess, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind: %s (supported: exec, write, read, access)", s)
	}
}

func runBreak(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32(args[0])
	if err != nil {
		return err
	}
	kind, err := parseBreakKind(breakKind)
	if err != nil {
		return err
	}

	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	if breakClear {
		bw := &target.BreakWatch{}
		bw.MarkSet(breakSlot)
		if err := tgt.BreakWatchClear(bw); err != nil {
			return fmt.Errorf("failed to clear trigger: %w", err)
		}
		fmt.Printf("Cleared trigger slot %d\n", breakSlot)
		return nil
	}

	bw := &target.BreakWatch{Kind: kind, Addr: addr, Size: 4}
	if err := tgt.BreakWatchSet(bw); err != nil {
		return fmt.Errorf("failed to set %s: %w", kind, err)
	}
	fmt.Printf("Set %s at 0x%08X (trigger slot %d)\n", kind, addr, bw.Slot)
	return nil
}
