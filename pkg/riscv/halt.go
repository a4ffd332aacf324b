package riscv

import "github.com/OpenTraceLab/OpenTraceDebug/pkg/target"

// HaltRequest asks the hart to halt. The hardware indicator can lag the
// request by several poll cycles, so the session remembers its own intent;
// HaltPoll consults the latch before trusting the cause field.
func (t *Target) HaltRequest() error {
	if err := t.dtm.haltStub(); err != nil {
		return err
	}
	t.dtm.haltRequested = true
	return nil
}

// HaltPoll reports whether the hart is halted and why. A zero cause with a
// pending halt request means the hardware has not caught up yet; the caller
// should poll again.
func (t *Target) HaltPoll() (target.HaltReason, error) {
	dcsr, err := t.dtm.csrRead(csrDCSR)
	if err != nil {
		return target.HaltError, err
	}
	if !t.dtm.haltRequested && dcsr&dcsrHalt == 0 {
		return target.Running, nil
	}

	switch (dcsr >> dcsrCauseShift) & dcsrCauseMask {
	case causeNone:
		return target.Running, nil
	case causeSWBreak, causeTrigger:
		return target.HaltBreakpoint, nil
	case causeDebugInt, causeHalt:
		return target.HaltRequest, nil
	case causeStep:
		return target.HaltStepping, nil
	default:
		return target.HaltError, nil
	}
}

// Resume releases the hart, optionally for a single step.
func (t *Target) Resume(step bool) error {
	if err := t.dtm.resumeStub(step); err != nil {
		return err
	}
	t.dtm.haltRequested = false
	return nil
}
