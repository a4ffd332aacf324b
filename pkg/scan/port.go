package scan

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/tap"
)

// transport drives a jtag.Adapter while tracking TAP controller state, so
// higher layers can think in terms of "write IR", "shift DR", "idle".
type transport struct {
	adapter jtag.Adapter
	tap     *tap.StateMachine
}

func newTransport(adapter jtag.Adapter) *transport {
	return &transport{adapter: adapter, tap: tap.NewStateMachine()}
}

func (t *transport) reset() error {
	if err := t.adapter.ResetTAP(false); err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		return err
	}
	seq := t.tap.Reset()
	return t.applySequence(seq)
}

func (t *transport) gotoState(target tap.State) error {
	seq, err := t.tap.GoTo(target)
	if err != nil {
		return err
	}
	return t.applySequence(seq)
}

func (t *transport) applySequence(seq tap.Sequence) error {
	if len(seq.TMS) == 0 {
		return nil
	}
	_, err := t.dispatch(seq.States[0].IsIR(), seq.TMS, nil)
	return err
}

// shift clocks out the payload while in a Shift state, raising TMS on the
// final bit to exit to Exit1, then parks the TAP in Run-Test/Idle.
func (t *transport) shift(ir bool, tdi []bool) ([]bool, error) {
	bits := len(tdi)
	if bits == 0 {
		return nil, fmt.Errorf("scan: empty shift")
	}
	tms := make([]bool, bits)
	tms[bits-1] = true

	for _, bit := range tms {
		t.tap.Clock(bit)
	}
	tdo, err := t.dispatch(ir, tms, tdi)
	if err != nil {
		return nil, err
	}
	if err := t.gotoState(tap.StateRunTestIdle); err != nil {
		return nil, err
	}
	return bytesToBools(tdo, bits), nil
}

// idle burns cycles in Run-Test/Idle with TMS held low.
func (t *transport) idle(cycles int) error {
	if cycles <= 0 {
		return nil
	}
	if err := t.gotoState(tap.StateRunTestIdle); err != nil {
		return err
	}
	tms := make([]bool, cycles)
	for _, bit := range tms {
		t.tap.Clock(bit)
	}
	_, err := t.dispatch(false, tms, nil)
	return err
}

func (t *transport) dispatch(ir bool, tms, tdi []bool) ([]byte, error) {
	if len(tms) == 0 {
		return nil, nil
	}
	bits := len(tms)
	tmsBytes := boolsToBytes(tms)
	tdiBytes := boolsToBytes(tdi)
	if tdiBytes == nil {
		tdiBytes = make([]byte, len(tmsBytes))
	}
	if ir {
		return t.adapter.ShiftIR(tmsBytes, tdiBytes, bits)
	}
	return t.adapter.ShiftDR(tmsBytes, tdiBytes, bits)
}

// Port gives a driver register-level access to one device on the chain:
// select an instruction, shift a data-register word, sequence idle cycles.
// The current implementation assumes the device is alone on the chain (no
// bypass padding for neighbours).
type Port struct {
	xport    *transport
	irLength int
}

// WriteIR loads an instruction code into the device's instruction register.
func (p *Port) WriteIR(code uint32) error {
	if err := p.xport.gotoState(tap.StateShiftIR); err != nil {
		return err
	}
	tdi := make([]bool, p.irLength)
	for i := 0; i < p.irLength; i++ {
		tdi[i] = code&(1<<uint(i)) != 0
	}
	_, err := p.xport.shift(true, tdi)
	return err
}

// ShiftDR shifts a bits-wide word through the selected data register,
// LSB-first, and returns the captured response word.
func (p *Port) ShiftDR(out uint64, bits int) (uint64, error) {
	if bits <= 0 || bits > 64 {
		return 0, fmt.Errorf("scan: DR shift of %d bits unsupported", bits)
	}
	if err := p.xport.gotoState(tap.StateShiftDR); err != nil {
		return 0, err
	}
	tdi := make([]bool, bits)
	for i := 0; i < bits; i++ {
		tdi[i] = out&(1<<uint(i)) != 0
	}
	tdo, err := p.xport.shift(false, tdi)
	if err != nil {
		return 0, err
	}
	var in uint64
	for i, bit := range tdo {
		if bit {
			in |= 1 << uint(i)
		}
	}
	return in, nil
}

// Idle clocks the requested number of TCK cycles in Run-Test/Idle.
func (p *Port) Idle(cycles int) error {
	return p.xport.idle(cycles)
}

// IRLength reports the width of the device's instruction register.
func (p *Port) IRLength() int { return p.irLength }
