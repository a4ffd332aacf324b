package riscv

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

func TestHaltResumeCycle(t *testing.T) {
	tgt, sim := newSimTarget(t)

	reason, err := tgt.HaltPoll()
	if err != nil {
		t.Fatalf("HaltPoll: %v", err)
	}
	if reason != target.Running {
		t.Fatalf("fresh target reports %v, want Running", reason)
	}

	if err := tgt.HaltRequest(); err != nil {
		t.Fatalf("HaltRequest: %v", err)
	}
	if !sim.Halted() {
		t.Fatal("hart did not halt")
	}
	reason, err = tgt.HaltPoll()
	if err != nil {
		t.Fatalf("HaltPoll: %v", err)
	}
	if reason != target.HaltRequest {
		t.Fatalf("halted for %v, want HaltRequest", reason)
	}

	if err := tgt.Resume(false); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if sim.Halted() {
		t.Fatal("hart did not resume")
	}
	if reason, _ = tgt.HaltPoll(); reason != target.Running {
		t.Fatalf("resumed target reports %v, want Running", reason)
	}
}

func TestSingleStep(t *testing.T) {
	tgt, sim := newSimTarget(t)

	if err := tgt.HaltRequest(); err != nil {
		t.Fatalf("HaltRequest: %v", err)
	}
	if err := tgt.Resume(true); err != nil {
		t.Fatalf("Resume(step): %v", err)
	}
	if !sim.Halted() {
		t.Fatal("hart ran away instead of stepping")
	}
	reason, err := tgt.HaltPoll()
	if err != nil {
		t.Fatalf("HaltPoll: %v", err)
	}
	if reason != target.HaltStepping {
		t.Fatalf("halted for %v, want HaltStepping", reason)
	}
}

func TestHaltCauses(t *testing.T) {
	cases := []struct {
		cause uint32
		want  target.HaltReason
	}{
		{causeSWBreak, target.HaltBreakpoint},
		{causeTrigger, target.HaltBreakpoint},
		{causeDebugInt, target.HaltRequest},
		{causeStep, target.HaltStepping},
		{causeHalt, target.HaltRequest},
		{6, target.HaltError},
		{7, target.HaltError},
	}
	for _, c := range cases {
		tgt, sim := newSimTarget(t)
		sim.ForceHalt(c.cause)
		reason, err := tgt.HaltPoll()
		if err != nil {
			t.Fatalf("cause %d: %v", c.cause, err)
		}
		if reason != c.want {
			t.Errorf("cause %d: got %v, want %v", c.cause, reason, c.want)
		}
	}
}

func TestAttachHalts(t *testing.T) {
	tgt, sim := newSimTarget(t)

	if err := tgt.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !sim.Halted() {
		t.Fatal("attach left the hart running")
	}

	if err := tgt.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if sim.Halted() {
		t.Fatal("detach left the hart halted")
	}
}

// inertPort acknowledges every operation and shifts back zeros, like a part
// whose hart ignores debug interrupts.
type inertPort struct{}

func (inertPort) WriteIR(uint32) error                { return nil }
func (inertPort) ShiftDR(uint64, int) (uint64, error) { return 0, nil }
func (inertPort) Idle(int) error                      { return nil }

func TestAttachTimeout(t *testing.T) {
	tgt := &Target{dtm: &DTM{port: inertPort{}, abits: 6}}

	if err := tgt.Attach(); !errors.Is(err, errAttachTimeout) {
		t.Fatalf("Attach = %v, want attach timeout", err)
	}
}
