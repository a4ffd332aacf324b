package riscv

// ramExec uploads a program into debug RAM and executes it. All words but the
// last are plain writes; the last carries the debug interrupt bit, which
// kicks the hart into the debug ROM to run what was just uploaded. Completion
// is signalled by the interrupt bit clearing on reads of the word slot just
// past the program; that slot's value is returned, as several stubs deposit
// their result there.
func (d *DTM) ramExec(code []uint32) (uint32, error) {
	last := len(code) - 1
	for i := 0; i < last; i++ {
		if err := d.write(uint32(i), uint64(code[i])); err != nil {
			return 0, err
		}
	}
	if err := d.write(uint32(last), uint64(code[last])|dbusInterrupt); err != nil {
		return 0, err
	}

	for poll := 0; poll < execPollLimit; poll++ {
		ret, err := d.read(uint32(len(code)))
		if err != nil {
			return 0, err
		}
		if ret&dbusInterrupt == 0 {
			return uint32(ret), nil
		}
	}

	// The hart never came back; reset the bus so the next operation starts
	// from a clean transport state.
	_ = d.reset()
	_ = d.port.WriteIR(irDBus)
	return 0, ErrExecTimeout
}

// Indirect access primitives. Each is a fixed stub executed via ramExec; the
// stub layouts put inputs in trailing RAM slots and results in the slot the
// completion poll reads.

// memReadWord reads one word of target memory.
//
//	400: lw   s0, 0x410(zero)   ; pointer
//	404: lw   s1, 0(s0)
//	408: sw   s1, 0x414(zero)   ; result, read back by the completion poll
//	40c: j    resume
//	410: addr
func (d *DTM) memReadWord(addr uint32) (uint32, error) {
	code := []uint32{
		encLW(regS0, regZero, ramSlot(4)),
		encLW(regS1, regS0, 0),
		encSW(regS1, regZero, ramSlot(5)),
		jalResume(3),
		addr,
	}
	return d.ramExec(code)
}

// memWriteWord writes one word of target memory.
func (d *DTM) memWriteWord(addr, value uint32) error {
	code := []uint32{
		encLW(regS0, regZero, ramSlot(4)),
		encLW(regS1, regZero, ramSlot(5)),
		encSW(regS1, regS0, 0),
		jalResume(3),
		addr,
		value,
	}
	_, err := d.ramExec(code)
	return err
}

// gprRead reads general purpose register n (valid for 1-7 and 10-31; the
// stub itself clobbers s0/s1).
func (d *DTM) gprRead(n uint32) (uint32, error) {
	code := []uint32{
		encSW(n, regZero, ramSlot(2)),
		jalResume(1),
	}
	return d.ramExec(code)
}

// gprWrite writes general purpose register n.
func (d *DTM) gprWrite(n, value uint32) error {
	code := []uint32{
		encLW(n, regZero, ramSlot(2)),
		jalResume(1),
		value,
	}
	_, err := d.ramExec(code)
	return err
}

// csrRead reads an arbitrary CSR through s0.
func (d *DTM) csrRead(csr uint32) (uint32, error) {
	code := []uint32{
		encCSRR(regS0, csr),
		encSW(regS0, regZero, ramSlot(3)),
		jalResume(2),
	}
	return d.ramExec(code)
}

// csrWrite writes an arbitrary CSR through s0.
func (d *DTM) csrWrite(csr, value uint32) error {
	code := []uint32{
		encLW(regS0, regZero, ramSlot(3)),
		encCSRW(csr, regS0),
		jalResume(2),
		value,
	}
	_, err := d.ramExec(code)
	return err
}

// haltStub asks the hart to stay halted by setting dcsr.halt.
func (d *DTM) haltStub() error {
	code := []uint32{
		encCSRSI(csrDCSR, dcsrHalt),
		jalResume(1),
	}
	_, err := d.ramExec(code)
	return err
}

// resumeStub releases the hart. When stepping, the step enable must be set
// before the halt bit is cleared so the hart re-enters debug mode after one
// instruction.
func (d *DTM) resumeStub(step bool) error {
	var code []uint32
	if step {
		code = []uint32{
			encCSRSI(csrDCSR, dcsrStep),
			encCSRCI(csrDCSR, dcsrHalt),
			jalResume(2),
		}
	} else {
		code = []uint32{
			encCSRCI(csrDCSR, dcsrHalt|dcsrStep),
			jalResume(1),
		}
	}
	_, err := d.ramExec(code)
	return err
}

// resetStub requests a debug-initiated reset via dcsr.ndreset. The bit is
// above csrsi's 5-bit immediate range, so it goes through s0.
func (d *DTM) resetStub() error {
	code := []uint32{
		encLUI(regS0, dcsrNDReset),
		encCSRS(csrDCSR, regS0),
		jalResume(2),
	}
	_, err := d.ramExec(code)
	return err
}
