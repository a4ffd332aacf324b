package riscv

import "github.com/OpenTraceLab/OpenTraceDebug/pkg/target"

// mcontrol (tdata1 type 2) fields.
const (
	mcontrolTypeShift = 28
	mcontrolTypeNone  = 0
	mcontrolTypeMatch = 2

	mcontrolDMode  uint32 = 1 << 27
	mcontrolAction uint32 = 1 << 12 // action=1: enter debug mode

	mcontrolM uint32 = 1 << 6
	mcontrolS uint32 = 1 << 4
	mcontrolU uint32 = 1 << 3

	mcontrolExecute uint32 = 1 << 2
	mcontrolStore   uint32 = 1 << 1
	mcontrolLoad    uint32 = 1 << 0

	// Any of these set means the slot is armed.
	mcontrolEnableMask = mcontrolExecute | mcontrolStore | mcontrolLoad
)

// triggerControl builds the mcontrol word for a break/watchpoint kind.
// Triggers always fire into the debugger, never into target-side trap
// handlers, so dmode and the debug action are always set, in all privilege
// modes.
func triggerControl(kind target.BreakKind) uint32 {
	control := uint32(mcontrolTypeMatch)<<mcontrolTypeShift |
		mcontrolDMode | mcontrolAction |
		mcontrolM | mcontrolS | mcontrolU
	switch kind {
	case target.BreakExecute:
		control |= mcontrolExecute
	case target.WatchWrite:
		control |= mcontrolStore
	case target.WatchRead:
		control |= mcontrolLoad
	case target.WatchAccess:
		control |= mcontrolLoad | mcontrolStore
	}
	return control
}

// BreakWatchSet claims the lowest-numbered free hardware trigger slot and
// programs it with the record's kind and address. The hardware enable bits
// are the source of truth for "free"; no shadow allocation state is kept.
func (t *Target) BreakWatchSet(bw *target.BreakWatch) error {
	control := triggerControl(bw.Kind)

	saved, err := t.dtm.csrRead(csrTSelect)
	if err != nil {
		return err
	}

	for index := uint32(0); ; index++ {
		if err := t.dtm.csrWrite(csrTSelect, index); err != nil {
			return err
		}
		// tselect is WARL: a write that does not read back means the
		// slot does not exist.
		got, err := t.dtm.csrRead(csrTSelect)
		if err != nil {
			return err
		}
		if got != index {
			break
		}

		tdata1, err := t.dtm.csrRead(csrTData1)
		if err != nil {
			return err
		}
		switch tdata1 >> mcontrolTypeShift {
		case mcontrolTypeNone:
			// No trigger behind this select value; the bank is done.
			_ = t.dtm.csrWrite(csrTSelect, saved)
			return ErrNoFreeTrigger
		case mcontrolTypeMatch:
			if tdata1&mcontrolEnableMask != 0 {
				continue // armed by someone else
			}
		default:
			continue // not an address/data match trigger
		}

		if err := t.dtm.csrWrite(csrTData1, control); err != nil {
			return err
		}
		if err := t.dtm.csrWrite(csrTData2, bw.Addr); err != nil {
			return err
		}
		if err := t.dtm.csrWrite(csrTSelect, saved); err != nil {
			return err
		}
		bw.MarkSet(index)
		return nil
	}

	_ = t.dtm.csrWrite(csrTSelect, saved)
	return ErrNoFreeTrigger
}

// BreakWatchClear disarms the slot recorded on the trigger. Clearing a
// record that was never set is rejected rather than risking another slot.
func (t *Target) BreakWatchClear(bw *target.BreakWatch) error {
	if !bw.Active() {
		return target.ErrNotSet
	}

	saved, err := t.dtm.csrRead(csrTSelect)
	if err != nil {
		return err
	}
	if err := t.dtm.csrWrite(csrTSelect, bw.Slot); err != nil {
		return err
	}
	if err := t.dtm.csrWrite(csrTData1, 0); err != nil {
		return err
	}
	if err := t.dtm.csrWrite(csrTSelect, saved); err != nil {
		return err
	}
	bw.MarkCleared()
	return nil
}
