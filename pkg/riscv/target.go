package riscv

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

// Register index contract exposed to remote debugging clients. Indices 0-31
// follow the architectural numbering except where the debug stubs make the
// true value unrecoverable; 32 is the program counter; 65 onward maps the raw
// CSR space.
const (
	regIndexDScratch = 8  // s0 is clobbered by every stub; expose dscratch
	regIndexDRAM     = 9  // s1 likewise; expose the last debug RAM word
	regIndexPC       = 32 // dpc
	regIndexCSRBase  = 65
	regIndexCSRLast  = regIndexCSRBase + 0xFFF

	// RegBlockWords is the register block transferred by RegsRead/RegsWrite:
	// x0-x31 plus the program counter.
	RegBlockWords = 33
)

var (
	// ErrMisaligned is returned for memory accesses that are not 4-byte
	// aligned; the debug stubs only move whole words.
	ErrMisaligned = errors.New("riscv: memory access must be word aligned")

	// ErrBadRegister is returned for register indices outside the contract.
	ErrBadRegister = errors.New("riscv: no such register")

	// ErrNoFreeTrigger means every hardware trigger slot is occupied or
	// absent.
	ErrNoFreeTrigger = errors.New("riscv: no free hardware trigger")

	errAttachTimeout = errors.New("riscv: target did not halt on attach")
)

const targetDescription = `<?xml version="1.0"?>
<!DOCTYPE target SYSTEM "gdb-target.dtd">
<target>
  <architecture>riscv:rv32</architecture>
</target>`

// Target implements the generic debugger-target capability set for one RV32
// hart behind a version-0 DTM. It owns the DTM session exclusively.
type Target struct {
	dtm *DTM
}

var _ target.Target = (*Target)(nil)

// Name identifies the driver.
func (t *Target) Name() string { return "RISC-V" }

// Description returns the target description document for remote clients.
func (t *Target) Description() string { return targetDescription }

// RegsSize reports the register block size in bytes.
func (t *Target) RegsSize() int { return RegBlockWords * 4 }

// DTM exposes the underlying session for inspection.
func (t *Target) DTM() *DTM { return t.dtm }

// Attach halts the hart and waits for the halt to land. The halt indicator
// can lag the request, so the wait is a bounded poll.
func (t *Target) Attach() error {
	if err := t.HaltRequest(); err != nil {
		return err
	}
	for i := 0; i < attachPollLimit; i++ {
		reason, err := t.HaltPoll()
		if err != nil {
			return err
		}
		if reason != target.Running {
			return nil
		}
	}
	return errAttachTimeout
}

const attachPollLimit = 64

// Detach resumes the hart and releases the session.
func (t *Target) Detach() error {
	return t.Resume(false)
}

// CheckError reports and clears the session's latched transport error.
func (t *Target) CheckError() bool {
	return t.dtm.CheckError()
}

// MemRead reads len(buf) bytes from addr. Both must be word aligned.
func (t *Target) MemRead(addr uint32, buf []byte) error {
	if addr%4 != 0 || len(buf)%4 != 0 {
		return ErrMisaligned
	}
	for i := 0; i < len(buf); i += 4 {
		word, err := t.dtm.memReadWord(addr + uint32(i))
		if err != nil {
			return err
		}
		buf[i] = byte(word)
		buf[i+1] = byte(word >> 8)
		buf[i+2] = byte(word >> 16)
		buf[i+3] = byte(word >> 24)
	}
	return nil
}

// MemWrite writes data to addr. Both must be word aligned.
func (t *Target) MemWrite(addr uint32, data []byte) error {
	if addr%4 != 0 || len(data)%4 != 0 {
		return ErrMisaligned
	}
	for i := 0; i < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 |
			uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		if err := t.dtm.memWriteWord(addr+uint32(i), word); err != nil {
			return err
		}
	}
	return nil
}

// RegRead reads one register by contract index.
func (t *Target) RegRead(reg int) (uint32, error) {
	switch {
	case reg == 0:
		// The architectural zero register.
		return 0, nil
	case reg == regIndexDScratch:
		return t.dtm.csrRead(csrDScratch)
	case reg == regIndexDRAM:
		word, err := t.dtm.read(uint32(t.dtm.dramWords))
		return uint32(word), err
	case reg >= 1 && reg <= 31:
		return t.dtm.gprRead(uint32(reg))
	case reg == regIndexPC:
		return t.dtm.csrRead(csrDPC)
	case reg >= regIndexCSRBase && reg <= regIndexCSRLast:
		return t.dtm.csrRead(uint32(reg - regIndexCSRBase))
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadRegister, reg)
	}
}

// RegWrite writes one register by contract index. Writes to the zero
// register are ignored.
func (t *Target) RegWrite(reg int, value uint32) error {
	switch {
	case reg == 0:
		return nil
	case reg == regIndexDScratch:
		return t.dtm.csrWrite(csrDScratch, value)
	case reg == regIndexDRAM:
		return t.dtm.write(uint32(t.dtm.dramWords), uint64(value))
	case reg >= 1 && reg <= 31:
		return t.dtm.gprWrite(uint32(reg), value)
	case reg == regIndexPC:
		return t.dtm.csrWrite(csrDPC, value)
	case reg >= regIndexCSRBase && reg <= regIndexCSRLast:
		return t.dtm.csrWrite(uint32(reg-regIndexCSRBase), value)
	default:
		return fmt.Errorf("%w: %d", ErrBadRegister, reg)
	}
}

// RegsRead snapshots the 33-word register block.
func (t *Target) RegsRead() ([]uint32, error) {
	regs := make([]uint32, RegBlockWords)
	for i := range regs {
		value, err := t.RegRead(i)
		if err != nil {
			return nil, err
		}
		regs[i] = value
	}
	return regs, nil
}

// RegsWrite writes the 33-word register block.
func (t *Target) RegsWrite(values []uint32) error {
	if len(values) != RegBlockWords {
		return fmt.Errorf("riscv: register block must be %d words, got %d",
			RegBlockWords, len(values))
	}
	for i, value := range values {
		if err := t.RegWrite(i, value); err != nil {
			return err
		}
	}
	return nil
}

// Reset requests a debug-initiated reset of the hart.
func (t *Target) Reset() error {
	return t.dtm.resetStub()
}
