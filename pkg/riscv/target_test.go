package riscv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemReadWrite(t *testing.T) {
	tgt, sim := newSimTarget(t)

	data := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0x0D, 0xF0, 0xED, 0xFE}
	if err := tgt.MemWrite(0x8000_0000, data); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if got := sim.Mem()[0x8000_0000]; got != 0xDEADBEEF {
		t.Fatalf("word 0 landed as %#x", got)
	}
	if got := sim.Mem()[0x8000_0004]; got != 0xFEEDF00D {
		t.Fatalf("word 1 landed as %#x", got)
	}

	buf := make([]byte, len(data))
	if err := tgt.MemRead(0x8000_0000, buf); err != nil {
		t.Fatalf("MemRead: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("read back % x, want % x", buf, data)
	}
}

func TestMemAlignment(t *testing.T) {
	tgt, _ := newSimTarget(t)

	if err := tgt.MemRead(0x1002, make([]byte, 4)); !errors.Is(err, ErrMisaligned) {
		t.Errorf("unaligned address: got %v", err)
	}
	if err := tgt.MemWrite(0x1000, make([]byte, 3)); !errors.Is(err, ErrMisaligned) {
		t.Errorf("partial word: got %v", err)
	}
}

func TestRegReadWriteGPR(t *testing.T) {
	tgt, sim := newSimTarget(t)

	sim.SetReg(5, 0x12345678)
	got, err := tgt.RegRead(5)
	if err != nil {
		t.Fatalf("RegRead(5): %v", err)
	}
	if got != 0x12345678 {
		t.Fatalf("t0 = %#x, want 0x12345678", got)
	}

	if err := tgt.RegWrite(28, 0xCAFEF00D); err != nil {
		t.Fatalf("RegWrite(28): %v", err)
	}
	if sim.Reg(28) != 0xCAFEF00D {
		t.Fatalf("t3 = %#x, want 0xCAFEF00D", sim.Reg(28))
	}
}

func TestRegZeroHardwired(t *testing.T) {
	tgt, _ := newSimTarget(t)

	if err := tgt.RegWrite(0, 0xFFFF); err != nil {
		t.Fatalf("RegWrite(0): %v", err)
	}
	got, err := tgt.RegRead(0)
	if err != nil || got != 0 {
		t.Fatalf("RegRead(0) = %#x, %v", got, err)
	}
}

// s0 and s1 are clobbered by every access stub, so their indices stand in for
// dscratch and the last debug RAM word.
func TestRegRemappedIndices(t *testing.T) {
	tgt, sim := newSimTarget(t)

	sim.SetCSR(csrDScratch, 0x5C4A7C4)
	if got, err := tgt.RegRead(regIndexDScratch); err != nil || got != 0x5C4A7C4 {
		t.Fatalf("reg 8 = %#x, %v; want dscratch", got, err)
	}

	if err := tgt.RegWrite(regIndexDRAM, 0x0DDC0DE); err != nil {
		t.Fatalf("RegWrite(9): %v", err)
	}
	if got, err := tgt.RegRead(regIndexDRAM); err != nil || got != 0x0DDC0DE {
		t.Fatalf("reg 9 = %#x, %v", got, err)
	}
}

func TestRegPC(t *testing.T) {
	tgt, sim := newSimTarget(t)

	if err := tgt.RegWrite(regIndexPC, 0x8000_1234); err != nil {
		t.Fatalf("RegWrite(pc): %v", err)
	}
	if got := sim.CSR(csrDPC); got != 0x8000_1234 {
		t.Fatalf("dpc = %#x", got)
	}
	if got, err := tgt.RegRead(regIndexPC); err != nil || got != 0x8000_1234 {
		t.Fatalf("RegRead(pc) = %#x, %v", got, err)
	}
}

func TestRegCSRSpace(t *testing.T) {
	tgt, sim := newSimTarget(t)

	const mstatus = 0x300
	sim.SetCSR(mstatus, 0x1888)
	if got, err := tgt.RegRead(regIndexCSRBase + mstatus); err != nil || got != 0x1888 {
		t.Fatalf("csr read = %#x, %v", got, err)
	}
	if err := tgt.RegWrite(regIndexCSRBase+mstatus, 0x88); err != nil {
		t.Fatalf("csr write: %v", err)
	}
	if got := sim.CSR(mstatus); got != 0x88 {
		t.Fatalf("mstatus = %#x, want 0x88", got)
	}
}

func TestRegBadIndices(t *testing.T) {
	tgt, _ := newSimTarget(t)

	for _, reg := range []int{-1, 33, 64, regIndexCSRLast + 1} {
		if _, err := tgt.RegRead(reg); !errors.Is(err, ErrBadRegister) {
			t.Errorf("RegRead(%d) = %v, want ErrBadRegister", reg, err)
		}
		if err := tgt.RegWrite(reg, 0); !errors.Is(err, ErrBadRegister) {
			t.Errorf("RegWrite(%d) = %v, want ErrBadRegister", reg, err)
		}
	}
}

func TestRegsBlock(t *testing.T) {
	tgt, sim := newSimTarget(t)

	for i := 1; i < 32; i++ {
		sim.SetReg(i, uint32(i)*0x101)
	}
	sim.SetCSR(csrDPC, 0x8000_0000)

	regs, err := tgt.RegsRead()
	if err != nil {
		t.Fatalf("RegsRead: %v", err)
	}
	if len(regs) != RegBlockWords {
		t.Fatalf("block is %d words, want %d", len(regs), RegBlockWords)
	}
	if regs[0] != 0 {
		t.Errorf("regs[0] = %#x, want 0", regs[0])
	}
	if regs[5] != 5*0x101 || regs[31] != 31*0x101 {
		t.Errorf("GPR slots wrong: x5=%#x x31=%#x", regs[5], regs[31])
	}
	if regs[regIndexPC] != 0x8000_0000 {
		t.Errorf("pc slot = %#x", regs[regIndexPC])
	}

	regs[7] = 0x777
	if err := tgt.RegsWrite(regs); err != nil {
		t.Fatalf("RegsWrite: %v", err)
	}
	if sim.Reg(7) != 0x777 {
		t.Errorf("x7 = %#x after block write", sim.Reg(7))
	}

	back, err := tgt.RegsRead()
	if err != nil {
		t.Fatalf("RegsRead after write: %v", err)
	}
	if diff := cmp.Diff(regs, back); diff != "" {
		t.Errorf("block round trip mismatch (-want +got):\n%s", diff)
	}

	if err := tgt.RegsWrite(regs[:10]); err == nil {
		t.Error("short block accepted")
	}
}

func TestRegsSize(t *testing.T) {
	tgt, _ := newSimTarget(t)
	if tgt.RegsSize() != RegBlockWords*4 {
		t.Fatalf("RegsSize = %d", tgt.RegsSize())
	}
}

func TestReset(t *testing.T) {
	tgt, sim := newSimTarget(t)

	if err := tgt.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if sim.CSR(csrDCSR)&dcsrNDReset == 0 {
		t.Fatal("ndreset was not requested")
	}
}

func TestExecTimeout(t *testing.T) {
	tgt, sim := newSimTarget(t)

	sim.HangExecution = true
	resets := sim.Resets
	if _, err := tgt.RegRead(5); !errors.Is(err, ErrExecTimeout) {
		t.Fatalf("RegRead on a hung hart = %v, want ErrExecTimeout", err)
	}
	if sim.Resets == resets {
		t.Error("timeout recovery did not reset the bus")
	}
}
