// Package scan discovers devices on a JTAG chain and hands per-device ports
// to architecture drivers.
package scan

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

// ProbeFunc is tried against each discovered device. It returns the target it
// constructed, or false when the device is not one the driver understands.
// Declining is a normal outcome, not an error.
type ProbeFunc func(dev *Device) (target.Target, bool)

// Controller orchestrates chain discovery over a JTAG adapter.
type Controller struct {
	adapter  jtag.Adapter
	irLength int
}

// NewController wires a JTAG adapter. irLength is the instruction register
// width used for device ports (RISC-V DTMs use 5 bits).
func NewController(adapter jtag.Adapter, irLength int) *Controller {
	return &Controller{adapter: adapter, irLength: irLength}
}

// Device is one entry on the scan chain.
type Device struct {
	Position int
	ID       IDCode

	port *Port
}

// Port returns the register-level access port for this device.
func (d *Device) Port() *Port { return d.port }

// Discover resets the chain, captures IDCODEs for the expected number of
// devices and builds a port per device.
func (c *Controller) Discover(deviceCount int) ([]*Device, error) {
	if deviceCount <= 0 {
		return nil, fmt.Errorf("scan: deviceCount must be positive")
	}
	if c.adapter == nil {
		return nil, fmt.Errorf("scan: adapter is nil")
	}

	xport := newTransport(c.adapter)
	if err := xport.reset(); err != nil {
		return nil, err
	}

	ids, err := readIDCodes(xport, deviceCount)
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, deviceCount)
	for idx, id := range ids {
		devices = append(devices, &Device{
			Position: idx,
			ID:       ParseIDCode(id),
			port:     &Port{xport: xport, irLength: c.irLength},
		})
	}
	return devices, nil
}

// DiscoverTargets runs Discover and offers every device to the provided probe
// functions, registering each constructed target. Devices no probe claims are
// skipped silently; an absent or incompatible chip is a normal scan outcome.
func (c *Controller) DiscoverTargets(deviceCount int, reg *target.Registry, probes ...ProbeFunc) ([]*Device, error) {
	devices, err := c.Discover(deviceCount)
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		for _, probe := range probes {
			t, ok := probe(dev)
			if !ok {
				continue
			}
			reg.Add(t)
			break
		}
	}
	return devices, nil
}

// readIDCodes captures 32 bits per device from the identification register,
// which every device selects after a TAP reset.
func readIDCodes(xport *transport, deviceCount int) ([]uint32, error) {
	if err := xport.gotoState(tap.StateShiftDR); err != nil {
		return nil, err
	}

	bits := deviceCount * 32
	tdi := make([]bool, bits)
	tdo, err := xport.shift(false, tdi)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, deviceCount)
	for i := 0; i < deviceCount; i++ {
		out[i] = bitsToUint32(tdo[i*32 : (i+1)*32])
	}
	return out, nil
}
