package riscv

import (
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/scan"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

// Probe is a scan.ProbeFunc: it checks whether the device carries a
// compatible RISC-V debug module and constructs a target when it does.
// Declining (an absent or incompatible chip) is a normal scan outcome and
// produces no error.
func Probe(dev *scan.Device) (target.Target, bool) {
	return ProbePort(dev.Port())
}

// ProbePort runs discovery over a raw debug port. Split out from Probe so
// simulated ports can be probed without a scan chain.
func ProbePort(port DebugPort) (target.Target, bool) {
	if err := port.WriteIR(irDTMControl); err != nil {
		return nil, false
	}
	dtmcontrol, err := port.ShiftDR(0, 32)
	if err != nil {
		return nil, false
	}

	version := uint8(dtmcontrol & 0xF)
	if version != 0 {
		// Later DTM generations use a different transport register set.
		return nil, false
	}

	d := &DTM{
		port:    port,
		version: version,
		// The address width is split across two dtmcontrol bit ranges.
		abits: uint8((dtmcontrol>>13)&3)<<4 | uint8((dtmcontrol>>4)&0xF),
		idle:  uint8((dtmcontrol >> 10) & 7),
	}
	if d.abits == 0 || d.abits > 28 {
		// A transaction is 36+abits bits; words beyond 64 bits are not
		// representable on this transport.
		return nil, false
	}

	if err := d.reset(); err != nil {
		return nil, false
	}
	if err := d.port.WriteIR(irDBus); err != nil {
		return nil, false
	}

	dminfo, err := d.read(addrDMInfo)
	if err != nil {
		return nil, false
	}
	if dmversion := uint8((dminfo>>4)&0xC) | uint8(dminfo&3); dmversion != 1 {
		return nil, false
	}
	if authenticated := (dminfo >> 5) & 1; authenticated != 1 {
		// An unauthenticated debug module would refuse every operation;
		// decline rather than attach to a locked part.
		return nil, false
	}
	d.dramWords = uint8((dminfo >> 10) & 0x3F)

	// Scratch round trip: debug RAM must hold what we put there before any
	// stub can be trusted.
	if err := d.write(0, 0xbeefcafe); err != nil {
		return nil, false
	}
	if err := d.write(1, 0xdeadbeef); err != nil {
		return nil, false
	}
	if word, err := d.read(0); err != nil || uint32(word) != 0xbeefcafe {
		return nil, false
	}
	if word, err := d.read(1); err != nil || uint32(word) != 0xdeadbeef {
		return nil, false
	}

	return &Target{dtm: d}, true
}
