package cmd

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/riscv"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/scan"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover devices on the JTAG chain",
	Long: `Reset the JTAG chain, read IDCODEs from the expected number of devices and
probe each one for a RISC-V debug module.

Examples:
  # Scan a single device with a CMSIS-DAP probe
  otd scan --adapter cmsisdap --count 1

  # Scan a two-device chain
  otd scan --adapter cmsisdap --count 2`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addConnectionFlags(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if adapterType == "simulator" || adapterType == "sim" {
		// The simulated debug module sits behind no scan chain; probe it
		// directly.
		tgt, ok := riscv.ProbePort(riscv.NewDMSim())
		if !ok {
			return fmt.Errorf("simulated debug module did not probe")
		}
		printTarget(0, tgt)
		return nil
	}

	adapter, err := createAdapter(adapterType, adapterSerial)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	defer func() {
		if c, ok := adapter.(interface{ Close() error }); ok {
			c.Close()
		}
	}()

	if err := adapter.SetSpeed(adapterSpeed); err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		return fmt.Errorf("failed to set speed: %w", err)
	}

	fmt.Printf("Discovering JTAG chain (expecting %d device(s))...\n\n", deviceCount)

	ctrl := scan.NewController(adapter, irLengthRISCV)
	reg := &target.Registry{}
	devices, err := ctrl.DiscoverTargets(deviceCount, reg, riscv.Probe)
	if err != nil {
		return fmt.Errorf("chain discovery failed: %w", err)
	}

	for _, dev := range devices {
		fmt.Printf("Device %d: %s\n", dev.Position, dev.ID)
	}

	fmt.Printf("\nFound %d debug target(s)\n", reg.Len())
	for i, tgt := range reg.All() {
		printTarget(i, tgt)
	}
	return nil
}

func printTarget(index int, tgt target.Target) {
	fmt.Printf("\nTarget %d: %s\n", index, tgt.Name())
	if rv, ok := tgt.(*riscv.Target); ok {
		d := rv.DTM()
		fmt.Printf("  Debug bus:  %d address bits, %d idle cycle(s)\n",
			d.AddressBits(), d.IdleCycles())
		fmt.Printf("  Debug RAM:  %d words\n", int(d.DebugRAMWords())+1)
	}
}
