package riscv

import "testing"

func newSimTarget(t *testing.T) (*Target, *DMSim) {
	t.Helper()
	sim := NewDMSim()
	tt, ok := ProbePort(sim)
	if !ok {
		t.Fatal("probe declined the simulated debug module")
	}
	return tt.(*Target), sim
}

func TestProbeSession(t *testing.T) {
	tgt, sim := newSimTarget(t)

	d := tgt.DTM()
	if d.Version() != 0 {
		t.Errorf("version = %d, want 0", d.Version())
	}
	if d.AddressBits() != sim.AddressBits {
		t.Errorf("abits = %d, want %d", d.AddressBits(), sim.AddressBits)
	}
	if d.IdleCycles() != sim.IdleCycles {
		t.Errorf("idle = %d, want %d", d.IdleCycles(), sim.IdleCycles)
	}
	if want := uint8(sim.RAMWords - 1); d.DebugRAMWords() != want {
		t.Errorf("dramWords = %d, want %d", d.DebugRAMWords(), want)
	}
	if tgt.Name() != "RISC-V" {
		t.Errorf("Name = %q", tgt.Name())
	}
}

// An unknown DTM generation has a different transport register set; the probe
// must decline before touching the debug bus.
func TestProbeWrongDTMVersion(t *testing.T) {
	sim := NewDMSim()
	sim.DTMVersion = 4

	if _, ok := ProbePort(sim); ok {
		t.Fatal("probe accepted an unknown DTM version")
	}
	if len(sim.History) != 0 {
		t.Fatalf("probe drove the debug bus anyway: %#x", sim.History)
	}
}

func TestProbeWrongDMVersion(t *testing.T) {
	sim := NewDMSim()
	sim.DMVersion = 2

	if _, ok := ProbePort(sim); ok {
		t.Fatal("probe accepted an unknown debug module version")
	}
}

func TestProbeUnauthenticated(t *testing.T) {
	sim := NewDMSim()
	sim.Authenticated = false

	if _, ok := ProbePort(sim); ok {
		t.Fatal("probe attached to a locked debug module")
	}
}

func TestProbeAddressWidthBounds(t *testing.T) {
	for _, abits := range []uint8{0, 31} {
		sim := NewDMSim()
		sim.AddressBits = abits
		if _, ok := ProbePort(sim); ok {
			t.Errorf("probe accepted abits=%d", abits)
		}
	}
}

func TestProbeBusFault(t *testing.T) {
	sim := NewDMSim()
	sim.ErrorResponses = 1

	if _, ok := ProbePort(sim); ok {
		t.Fatal("probe survived a debug bus fault")
	}
}
