package riscv

// DMSim emulates a 0.11 Debug Module behind a version-0 DTM at the debug port
// level. It answers dtmcontrol and dbus shifts the way the silicon would,
// including the read pipeline, and runs uploaded debug RAM programs with a
// small RV32I interpreter so the indirect access stubs execute for real.
// It exists for tests and for the simulator adapter backend.
type DMSim struct {
	// Identity, as reported through dtmcontrol and dminfo.
	DTMVersion    uint8
	DMVersion     uint8
	AddressBits   uint8
	IdleCycles    uint8
	RAMWords      int
	Triggers      int
	Authenticated bool

	// Fault injection. BusyResponses makes the next n dbus shifts answer
	// busy without executing; ErrorResponses answers with the error status.
	// HangExecution keeps the interrupt bit set so programs never complete.
	BusyResponses  int
	ErrorResponses int
	HangExecution  bool

	// History records every dbus payload shifted in, in order, busy or not.
	History []uint64

	// Resets counts dtmcontrol reset writes.
	Resets int

	ir       uint32
	captured uint64 // data returned by the next shift (read pipeline)

	ram    []uint32
	mem    map[uint32]uint32
	regs   [32]uint32
	csrs   map[uint32]uint32
	dcsr   uint32
	halted bool

	tselect uint32
	tdata1  []uint32
	tdata2  []uint32
}

var _ DebugPort = (*DMSim)(nil)

// NewDMSim returns a simulator with the geometry the driver's tests assume:
// a 6-bit debug bus, one idle cycle, seven words of debug RAM and four
// address-match triggers.
func NewDMSim() *DMSim {
	s := &DMSim{
		DMVersion:     1,
		AddressBits:   6,
		IdleCycles:    1,
		RAMWords:      7,
		Triggers:      4,
		Authenticated: true,
		mem:           make(map[uint32]uint32),
		csrs:          make(map[uint32]uint32),
	}
	s.ram = make([]uint32, s.RAMWords)
	s.tdata1 = make([]uint32, s.Triggers)
	s.tdata2 = make([]uint32, s.Triggers)
	return s
}

// ForceHalt puts the hart in the halted state with the given debug cause, as
// if the hardware stopped it asynchronously.
func (s *DMSim) ForceHalt(cause uint32) {
	s.halted = true
	s.dcsr |= dcsrHalt
	s.setCause(cause)
}

// Halted reports the hart state.
func (s *DMSim) Halted() bool { return s.halted }

// Mem exposes backing memory for test setup and assertions.
func (s *DMSim) Mem() map[uint32]uint32 { return s.mem }

// Reg exposes a general purpose register for test setup and assertions.
func (s *DMSim) Reg(n int) uint32 { return s.regs[n] }

// SetReg sets a general purpose register.
func (s *DMSim) SetReg(n int, v uint32) {
	if n != 0 {
		s.regs[n] = v
	}
}

// SetCSR seeds a CSR value.
func (s *DMSim) SetCSR(csr, v uint32) { s.csrWrite(csr, v) }

// CSR reads a CSR value as the hart would.
func (s *DMSim) CSR(csr uint32) uint32 { return s.csrRead(csr) }

// TriggerControl returns the raw mcontrol word of a trigger slot.
func (s *DMSim) TriggerControl(slot int) uint32 { return s.tdata1[slot] }

// TriggerAddr returns the match address of a trigger slot.
func (s *DMSim) TriggerAddr(slot int) uint32 { return s.tdata2[slot] }

func (s *DMSim) dtmControlWord() uint64 {
	return uint64(s.DTMVersion&0xF) |
		uint64(s.AddressBits&0xF)<<4 |
		uint64(s.IdleCycles&7)<<10 |
		uint64(s.AddressBits>>4&3)<<13
}

func (s *DMSim) dmInfoWord() uint64 {
	word := uint64(s.DMVersion&3) | uint64(s.DMVersion&0xC)<<4
	if s.Authenticated {
		word |= 1 << 5
	}
	word |= uint64(s.RAMWords-1) << 10
	return word
}

// WriteIR latches the instruction register.
func (s *DMSim) WriteIR(code uint32) error {
	s.ir = code
	return nil
}

// Idle burns run-test/idle cycles; the simulator has nothing to settle.
func (s *DMSim) Idle(cycles int) error { return nil }

// ShiftDR performs one data register shift against whatever instruction is
// selected.
func (s *DMSim) ShiftDR(out uint64, bits int) (uint64, error) {
	switch s.ir {
	case irDTMControl:
		if out&dtmControlReset != 0 {
			s.Resets++
		}
		return s.dtmControlWord(), nil
	case irDBus:
		return s.shiftDBus(out), nil
	default:
		return 0, nil
	}
}

// shiftDBus processes a debug bus transaction. The data field of the response
// is pipelined: it carries the value captured by the previous read, and the
// current transaction's read (if any) loads the capture for the next shift.
func (s *DMSim) shiftDBus(word uint64) uint64 {
	s.History = append(s.History, word)

	if s.BusyResponses > 0 {
		s.BusyResponses--
		return dbusStatusBusy
	}
	if s.ErrorResponses > 0 {
		s.ErrorResponses--
		return dbusStatusError
	}

	addr, data, op := unpackDBus(s.AddressBits, word)
	response := s.captured<<2 | dbusStatusOK

	switch op {
	case dbusRead:
		s.captured = s.busRead(addr)
	case dbusWrite:
		s.busWrite(addr, data)
	}
	return response
}

func (s *DMSim) busRead(addr uint32) uint64 {
	switch {
	case int(addr) < s.RAMWords:
		word := uint64(s.ram[addr])
		if s.HangExecution {
			word |= dbusInterrupt
		}
		return word
	case addr == addrDMControl:
		return 0
	case addr == addrDMInfo:
		return s.dmInfoWord()
	default:
		return 0
	}
}

func (s *DMSim) busWrite(addr uint32, data uint64) {
	if int(addr) >= s.RAMWords {
		return
	}
	s.ram[addr] = uint32(data)
	if data&dbusInterrupt != 0 && !s.HangExecution {
		s.execute()
	}
}

// execute runs the uploaded program from the start of debug RAM until it
// jumps to the resume vector, then applies the dcsr halt/resume semantics
// the hart would.
func (s *DMSim) execute() {
	wasHalted := s.dcsr&dcsrHalt != 0

	pc := debugRAMBase
	for steps := 0; steps < 64; steps++ {
		if pc == debugResume {
			break
		}
		slot := int(pc-debugRAMBase) / 4
		if slot < 0 || slot >= s.RAMWords {
			break
		}
		next, ok := s.step(s.ram[slot], pc)
		if !ok {
			break
		}
		pc = next
	}

	nowHalted := s.dcsr&dcsrHalt != 0
	switch {
	case nowHalted && !wasHalted:
		s.halted = true
		s.setCause(causeHalt)
	case !nowHalted && s.halted:
		if s.dcsr&dcsrStep != 0 {
			// One instruction retires and the hart is back.
			s.dcsr |= dcsrHalt
			s.setCause(causeStep)
		} else {
			s.halted = false
			s.setCause(causeNone)
		}
	}
}

func (s *DMSim) setCause(cause uint32) {
	s.dcsr = s.dcsr&^(dcsrCauseMask<<dcsrCauseShift) |
		(cause&dcsrCauseMask)<<dcsrCauseShift
}

// step interprets one RV32I instruction; it returns the next pc and whether
// execution may continue. Only the subset the debug stubs use is implemented.
func (s *DMSim) step(instr, pc uint32) (uint32, bool) {
	rd := instr >> 7 & 0x1F
	rs1 := instr >> 15 & 0x1F
	rs2 := instr >> 20 & 0x1F

	switch instr & 0x7F {
	case 0x37: // lui
		s.SetReg(int(rd), instr&0xFFFF_F000)
	case 0x03: // lw
		if instr>>12&7 != 2 {
			return 0, false
		}
		addr := s.regs[rs1] + uint32(int32(instr)>>20)
		s.SetReg(int(rd), s.load(addr))
	case 0x23: // sw
		if instr>>12&7 != 2 {
			return 0, false
		}
		imm := uint32(int32(instr)>>25)<<5 | rd
		s.store(s.regs[rs1]+imm, s.regs[rs2])
	case 0x6F: // jal
		s.SetReg(int(rd), pc+4)
		o := uint32(int32(instr)>>31) << 20
		o |= instr >> 21 & 0x3FF << 1
		o |= instr >> 20 & 1 << 11
		o |= instr >> 12 & 0xFF << 12
		return pc + o, true
	case 0x73: // csr ops
		csr := instr >> 20
		funct3 := instr >> 12 & 7
		operand := s.regs[rs1]
		if funct3&4 != 0 {
			operand = rs1 // immediate variants
		}
		old := s.csrRead(csr)
		switch funct3 & 3 {
		case 1:
			s.csrWrite(csr, operand)
		case 2:
			if operand != 0 {
				s.csrWrite(csr, old|operand)
			}
		case 3:
			if operand != 0 {
				s.csrWrite(csr, old&^operand)
			}
		default:
			return 0, false
		}
		s.SetReg(int(rd), old)
	default:
		return 0, false
	}
	return pc + 4, true
}

func (s *DMSim) load(addr uint32) uint32 {
	if addr >= debugRAMBase && int(addr-debugRAMBase)/4 < s.RAMWords {
		return s.ram[(addr-debugRAMBase)/4]
	}
	return s.mem[addr]
}

func (s *DMSim) store(addr, value uint32) {
	if addr >= debugRAMBase && int(addr-debugRAMBase)/4 < s.RAMWords {
		s.ram[(addr-debugRAMBase)/4] = value
		return
	}
	s.mem[addr] = value
}

func (s *DMSim) csrRead(csr uint32) uint32 {
	switch csr {
	case csrDCSR:
		return s.dcsr
	case csrTSelect:
		return s.tselect
	case csrTData1:
		value := s.tdata1[s.tselect]
		if value>>mcontrolTypeShift == mcontrolTypeNone {
			// Unprogrammed match triggers still advertise their type.
			value |= mcontrolTypeMatch << mcontrolTypeShift
		}
		return value
	case csrTData2:
		return s.tdata2[s.tselect]
	default:
		return s.csrs[csr]
	}
}

func (s *DMSim) csrWrite(csr, value uint32) {
	switch csr {
	case csrDCSR:
		s.dcsr = value
	case csrTSelect:
		// WARL: selects beyond the implemented bank do not stick.
		if int(value) < s.Triggers {
			s.tselect = value
		}
	case csrTData1:
		s.tdata1[s.tselect] = value
	case csrTData2:
		s.tdata2[s.tselect] = value
	default:
		s.csrs[csr] = value
	}
}
