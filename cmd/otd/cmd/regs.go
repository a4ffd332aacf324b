package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var regsCmd = &cobra.Command{
	Use:   "regs [index [value]]",
	Short: "Read or write target registers",
	Long: `With no arguments, dump the full register file. With an index, read that
register; with an index and a value, write it.

Register indices follow the remote protocol numbering: 0-31 are the integer
registers (8 reads dscratch and 9 the last debug RAM word, since the debug
stubs clobber s0/s1), 32 is the pc, and 65 onward maps the CSR space.

Examples:
  otd regs                    # dump x0-x31 and pc
  otd regs 32                 # read the pc
  otd regs 32 0x80000000      # set the pc
  otd regs 833 0x1800         # CSR access: 833 = 65 + 0x300 (mstatus)`,
	Args: cobra.MaximumNArgs(2),
	RunE: runRegs,
}

func init() {
	rootCmd.AddCommand(regsCmd)
	addConnectionFlags(regsCmd)
}

// ABI names for the dump, indexed by register number.
var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func runRegs(cmd *cobra.Command, args []string) error {
	tgt, cleanup, err := openTarget()
	if err != nil {
		return err
	}
	defer cleanup()

	switch len(args) {
	case 0:
		regs, err := tgt.RegsRead()
		if err != nil {
			return fmt.Errorf("register read failed: %w", err)
		}
		for i := 0; i < 32; i++ {
			fmt.Printf("%-4s (x%-2d) = 0x%08X", abiNames[i], i, regs[i])
			if i%2 == 1 {
				fmt.Println()
			} else {
				fmt.Print("    ")
			}
		}
		fmt.Printf("pc         = 0x%08X\n", regs[32])

	case 1:
		index, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		value, err := tgt.RegRead(int(index))
		if err != nil {
			return fmt.Errorf("register read failed: %w", err)
		}
		fmt.Printf("reg %d = 0x%08X\n", index, value)

	case 2:
		index, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		value, err := parseUint32(args[1])
		if err != nil {
			return err
		}
		if err := tgt.RegWrite(int(index), value); err != nil {
			return fmt.Errorf("register write failed: %w", err)
		}
		fmt.Printf("reg %d = 0x%08X\n", index, value)
	}

	if tgt.CheckError() {
		return fmt.Errorf("transport error during register access; values are unreliable")
	}
	return nil
}

// parseUint32 accepts decimal or 0x-prefixed hex.
func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}
