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

// Shared connection flags; every command that touches a target registers
// these through addConnectionFlags.
var (
	adapterType   string
	adapterSerial string
	adapterSpeed  int
	deviceCount   int
	targetIndex   int
)

// irLengthRISCV is the DTM instruction register width.
const irLengthRISCV = 5

// addConnectionFlags registers the shared probe/chain flags on a command.
func addConnectionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&adapterType, "adapter", "a", "simulator",
		"JTAG adapter type (simulator, cmsisdap)")
	c.Flags().StringVarP(&adapterSerial, "serial", "s", "",
		"adapter serial number (if multiple adapters)")
	c.Flags().IntVar(&adapterSpeed, "speed", 1000000,
		"TCK speed in Hz (default 1MHz)")
	c.Flags().IntVarP(&deviceCount, "count", "c", 1,
		"expected number of devices in chain")
	c.Flags().IntVar(&targetIndex, "target", 0,
		"index of the target to operate on")
}

// createAdapter creates the appropriate JTAG adapter based on type
func createAdapter(adapterType, serial string) (jtag.Adapter, error) {
	switch adapterType {
	case "simulator", "sim":
		if verbose {
			fmt.Println("Using simulator adapter")
		}
		info := jtag.AdapterInfo{
			Name:         "JTAG Simulator",
			Vendor:       "OpenTraceLab",
			Model:        "Sim-1.0",
			Firmware:     "v0.1.0",
			MinFrequency: 100,
			MaxFrequency: 10000000, // 10 MHz
		}
		return jtag.NewSimAdapter(info), nil

	case "cmsisdap", "cmsis", "dap":
		if verbose {
			fmt.Println("Opening CMSIS-DAP probe...")
		}

		adapter, err := jtag.NewCMSISDAPAdapter(jtag.VendorIDRaspberryPi, jtag.ProductIDCMSISDAP, serial)
		if err != nil {
			return nil, fmt.Errorf("failed to open CMSIS-DAP probe: %w", err)
		}

		if verbose {
			info, _ := adapter.Info()
			fmt.Printf("Connected to: %s %s\n", info.Vendor, info.Model)
			fmt.Printf("  Serial: %s\n", info.SerialNumber)
			fmt.Printf("  Firmware: %s\n", info.Firmware)
			fmt.Printf("  Frequency range: %d - %d Hz\n", info.MinFrequency, info.MaxFrequency)
		}

		return adapter, nil

	default:
		return nil, fmt.Errorf("unknown adapter type: %s (supported: simulator, cmsisdap)", adapterType)
	}
}

// openTarget connects the adapter, scans the chain and returns the selected
// RISC-V target plus a cleanup function. The simulator adapter skips the scan
// chain and probes a simulated debug module directly, so every command can be
// exercised without hardware.
func openTarget() (target.Target, func(), error) {
	if adapterType == "simulator" || adapterType == "sim" {
		tgt, ok := riscv.ProbePort(riscv.NewDMSim())
		if !ok {
			return nil, nil, fmt.Errorf("simulated debug module did not probe")
		}
		return tgt, func() {}, nil
	}

	adapter, err := createAdapter(adapterType, adapterSerial)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	cleanup := func() {
		if c, ok := adapter.(interface{ Close() error }); ok {
			c.Close()
		}
	}

	if err := adapter.SetSpeed(adapterSpeed); err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		cleanup()
		return nil, nil, fmt.Errorf("failed to set speed: %w", err)
	}

	ctrl := scan.NewController(adapter, irLengthRISCV)
	reg := &target.Registry{}
	if _, err := ctrl.DiscoverTargets(deviceCount, reg, riscv.Probe); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("chain discovery failed: %w", err)
	}

	targets := reg.All()
	if len(targets) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("no RISC-V debug module found on the chain")
	}
	if targetIndex < 0 || targetIndex >= len(targets) {
		cleanup()
		return nil, nil, fmt.Errorf("target %d out of range (found %d)", targetIndex, len(targets))
	}
	return targets[targetIndex], cleanup, nil
}
