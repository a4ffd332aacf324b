package riscv

import (
	"errors"
	"testing"
)

func TestPackUnpackDBus(t *testing.T) {
	// The transaction width follows the hardware address field, which can be
	// anywhere in the range the port can shift.
	for _, abits := range []uint8{1, 6, 12, 28} {
		wantAddr := uint32(0x1DEADB5) & (1<<abits - 1)
		word, bits := packDBus(abits, wantAddr, 0x2_DEAD_BEEF, dbusWrite)
		if bits != 36+int(abits) {
			t.Fatalf("abits=%d: transaction width = %d bits, want %d",
				abits, bits, 36+int(abits))
		}

		addr, data, op := unpackDBus(abits, word)
		if addr != wantAddr || data != 0x2_DEAD_BEEF || op != dbusWrite {
			t.Fatalf("abits=%d: round trip gave addr=%#x data=%#x op=%d",
				abits, addr, data, op)
		}
	}
}

func TestPackDBusMasksData(t *testing.T) {
	word, _ := packDBus(6, 0, ^uint64(0), dbusNOP)
	if _, data, _ := unpackDBus(6, word); data != dbusDataMask {
		t.Fatalf("data field = %#x, want %#x", data, dbusDataMask)
	}
}

func newTestDTM(sim *DMSim) *DTM {
	d := &DTM{port: sim, abits: sim.AddressBits, idle: sim.IdleCycles}
	d.port.WriteIR(irDBus)
	return d
}

func TestScratchRoundTrip(t *testing.T) {
	sim := NewDMSim()
	d := newTestDTM(sim)

	if err := d.write(0, 0xdeadbeef); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := d.read(0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("read back %#x, want 0xdeadbeef", got)
	}
}

// A busy response means the transaction was dropped. The driver must replay
// the previous word, then resubmit the dropped one unchanged.
func TestBusyRetryResubmits(t *testing.T) {
	sim := NewDMSim()
	d := newTestDTM(sim)

	if err := d.write(2, 0x111); err != nil {
		t.Fatalf("priming write: %v", err)
	}

	sim.BusyResponses = 1
	if err := d.write(3, 0x222); err != nil {
		t.Fatalf("write after busy: %v", err)
	}

	if len(sim.History) != 4 {
		t.Fatalf("saw %d dbus words, want 4: %#x", len(sim.History), sim.History)
	}
	if sim.History[2] != sim.History[0] {
		t.Errorf("replayed word %#x, want previous word %#x",
			sim.History[2], sim.History[0])
	}
	if sim.History[3] != sim.History[1] {
		t.Errorf("resubmitted word %#x, want dropped word %#x",
			sim.History[3], sim.History[1])
	}
	if sim.Resets == 0 {
		t.Error("busy recovery did not reset the bus")
	}
	if got, _ := d.read(3); got != 0x222 {
		t.Errorf("retried write stored %#x, want 0x222", got)
	}
}

func TestBusyRetryBounded(t *testing.T) {
	sim := NewDMSim()
	d := newTestDTM(sim)

	sim.BusyResponses = busyRetryLimit + 1
	if err := d.write(0, 1); !errors.Is(err, ErrTransportBusy) {
		t.Fatalf("write = %v, want ErrTransportBusy", err)
	}
	if !d.stickyErr {
		t.Fatal("exhausted retries did not latch the sticky error")
	}
}

// Once a fault is latched, every transaction fails fast and touches nothing
// until CheckError acknowledges it.
func TestStickyErrorLatch(t *testing.T) {
	sim := NewDMSim()
	d := newTestDTM(sim)

	sim.ErrorResponses = 1
	if err := d.write(0, 1); !errors.Is(err, ErrTransportFault) {
		t.Fatalf("faulted write = %v, want ErrTransportFault", err)
	}

	quiet := len(sim.History)
	if _, err := d.read(0); !errors.Is(err, ErrTransportFault) {
		t.Fatalf("read after fault = %v, want ErrTransportFault", err)
	}
	if err := d.write(1, 2); !errors.Is(err, ErrTransportFault) {
		t.Fatalf("write after fault = %v, want ErrTransportFault", err)
	}
	if len(sim.History) != quiet {
		t.Fatal("latched session still drove the bus")
	}

	if !d.CheckError() {
		t.Fatal("CheckError = false with a latched fault")
	}
	if d.CheckError() {
		t.Fatal("CheckError did not clear the latch")
	}
	if err := d.write(1, 2); err != nil {
		t.Fatalf("write after acknowledge: %v", err)
	}
}
