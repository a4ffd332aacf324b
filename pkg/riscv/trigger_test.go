package riscv

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

func TestTriggerControlKinds(t *testing.T) {
	cases := []struct {
		kind   target.BreakKind
		enable uint32
	}{
		{target.BreakExecute, mcontrolExecute},
		{target.WatchWrite, mcontrolStore},
		{target.WatchRead, mcontrolLoad},
		{target.WatchAccess, mcontrolLoad | mcontrolStore},
	}
	for _, c := range cases {
		control := triggerControl(c.kind)
		if control&mcontrolEnableMask != c.enable {
			t.Errorf("kind %v: enable bits %#x, want %#x",
				c.kind, control&mcontrolEnableMask, c.enable)
		}
		if control>>mcontrolTypeShift != mcontrolTypeMatch {
			t.Errorf("kind %v: type %d, want match", c.kind, control>>mcontrolTypeShift)
		}
		if control&mcontrolDMode == 0 || control&mcontrolAction == 0 {
			t.Errorf("kind %v: trigger would fire into the target, not the debugger", c.kind)
		}
		if control&(mcontrolM|mcontrolS|mcontrolU) != mcontrolM|mcontrolS|mcontrolU {
			t.Errorf("kind %v: not armed in all privilege modes", c.kind)
		}
	}
}

func TestBreakWatchSetClaimsLowestSlot(t *testing.T) {
	tgt, sim := newSimTarget(t)

	bp := &target.BreakWatch{Kind: target.BreakExecute, Addr: 0x8000_0100}
	wp := &target.BreakWatch{Kind: target.WatchWrite, Addr: 0x8000_2000}

	if err := tgt.BreakWatchSet(bp); err != nil {
		t.Fatalf("set breakpoint: %v", err)
	}
	if bp.Slot != 0 {
		t.Fatalf("breakpoint took slot %d, want 0", bp.Slot)
	}
	if err := tgt.BreakWatchSet(wp); err != nil {
		t.Fatalf("set watchpoint: %v", err)
	}
	if wp.Slot != 1 {
		t.Fatalf("watchpoint took slot %d, want 1", wp.Slot)
	}

	if got := sim.TriggerAddr(0); got != 0x8000_0100 {
		t.Errorf("slot 0 matches %#x", got)
	}
	if sim.TriggerControl(0)&mcontrolExecute == 0 {
		t.Error("slot 0 is not an execute trigger")
	}
	if got := sim.TriggerAddr(1); got != 0x8000_2000 {
		t.Errorf("slot 1 matches %#x", got)
	}
	if sim.TriggerControl(1)&mcontrolStore == 0 {
		t.Error("slot 1 is not a store trigger")
	}
}

func TestBreakWatchClear(t *testing.T) {
	tgt, sim := newSimTarget(t)

	bp := &target.BreakWatch{Kind: target.BreakExecute, Addr: 0x100}
	wp := &target.BreakWatch{Kind: target.WatchAccess, Addr: 0x200}
	if err := tgt.BreakWatchSet(bp); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tgt.BreakWatchSet(wp); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := tgt.BreakWatchClear(bp); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if sim.TriggerControl(0)&mcontrolEnableMask != 0 {
		t.Error("cleared slot still armed")
	}
	if sim.TriggerControl(1)&mcontrolEnableMask == 0 || sim.TriggerAddr(1) != 0x200 {
		t.Error("clearing slot 0 disturbed slot 1")
	}

	// The freed slot must be reusable.
	again := &target.BreakWatch{Kind: target.WatchRead, Addr: 0x300}
	if err := tgt.BreakWatchSet(again); err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if again.Slot != 0 {
		t.Fatalf("reused slot %d, want 0", again.Slot)
	}
}

func TestBreakWatchClearUnset(t *testing.T) {
	tgt, _ := newSimTarget(t)

	bw := &target.BreakWatch{Kind: target.BreakExecute, Addr: 0x100}
	if err := tgt.BreakWatchClear(bw); !errors.Is(err, target.ErrNotSet) {
		t.Fatalf("clear of unset record = %v, want ErrNotSet", err)
	}
}

func TestBreakWatchExhaustion(t *testing.T) {
	tgt, sim := newSimTarget(t)

	for i := 0; i < sim.Triggers; i++ {
		bw := &target.BreakWatch{Kind: target.BreakExecute, Addr: uint32(i) * 4}
		if err := tgt.BreakWatchSet(bw); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	extra := &target.BreakWatch{Kind: target.BreakExecute, Addr: 0xFFFF}
	if err := tgt.BreakWatchSet(extra); !errors.Is(err, ErrNoFreeTrigger) {
		t.Fatalf("set beyond capacity = %v, want ErrNoFreeTrigger", err)
	}
	if extra.Active() {
		t.Fatal("failed set left the record marked active")
	}
}

func TestBreakWatchRestoresTSelect(t *testing.T) {
	tgt, sim := newSimTarget(t)

	sim.SetCSR(csrTSelect, 2)
	bw := &target.BreakWatch{Kind: target.BreakExecute, Addr: 0x100}
	if err := tgt.BreakWatchSet(bw); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := sim.CSR(csrTSelect); got != 2 {
		t.Fatalf("tselect = %d after set, want 2", got)
	}
	if err := tgt.BreakWatchClear(bw); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := sim.CSR(csrTSelect); got != 2 {
		t.Fatalf("tselect = %d after clear, want 2", got)
	}
}
