package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "otd",
	Short: "RISC-V JTAG Debug Probe",
	Long: `A JTAG debug probe for RISC-V targets implementing the external debug
specification draft 0.11 (DTM version 0, Debug Module version 1).

Examples:
  otd scan --adapter cmsisdap --count 1       # Discover the chain and probe for debug modules
  otd halt                                    # Halt the hart and show why it stopped
  otd regs                                    # Dump the register file
  otd mem 0x80000000 4                        # Read four words of target memory`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
