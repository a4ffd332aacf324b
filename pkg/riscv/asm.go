package riscv

// The indirect access primitives work by uploading tiny RV32I programs into
// the target's debug RAM and letting the hart execute them. The encodings
// below are part of the protocol surface: the CPU runs these words verbatim,
// so they must be bit-exact. Patch points are the register-select fields for
// GPR access and the 12-bit CSR immediate for CSR access.

// Target debug memory map, per debug spec draft 0.11.
const (
	debugRAMBase uint32 = 0x400 // debug RAM, program upload area
	debugResume  uint32 = 0x804 // debug ROM resume vector
)

// Debug-mode CSRs (0.11 numbering).
const (
	csrDCSR     uint32 = 0x790
	csrDPC      uint32 = 0x791
	csrDScratch uint32 = 0x792
)

// Trigger CSRs.
const (
	csrTSelect uint32 = 0x7A0
	csrTData1  uint32 = 0x7A1
	csrTData2  uint32 = 0x7A2
)

// dcsr fields (0.11 layout).
const (
	dcsrStep    uint32 = 1 << 2
	dcsrHalt    uint32 = 1 << 3
	dcsrNDReset uint32 = 1 << 29

	dcsrCauseShift = 6
	dcsrCauseMask  = 0x7
)

// dcsr cause values.
const (
	causeNone     = 0
	causeSWBreak  = 1
	causeTrigger  = 2
	causeDebugInt = 3
	causeStep     = 4
	causeHalt     = 5
)

// GPR numbers the stubs clobber; the register facade repurposes their
// indices (see Target.RegRead).
const (
	regZero uint32 = 0
	regS0   uint32 = 8
	regS1   uint32 = 9
)

// RV32I instruction templates. rd/rs fields are 5 bits, immediates are
// sign-agnostic 12-bit (I/S) or 21-bit (J) values supplied by the caller.

// encLW encodes "lw rd, imm(rs1)".
func encLW(rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | rs1<<15 | 2<<12 | rd<<7 | 0x03
}

// encSW encodes "sw rs2, imm(rs1)".
func encSW(rs2, rs1 uint32, imm int32) uint32 {
	i := uint32(imm) & 0xFFF
	return (i>>5)<<25 | rs2<<20 | rs1<<15 | 2<<12 | (i&0x1F)<<7 | 0x23
}

// encLUI encodes "lui rd, value[31:12]".
func encLUI(rd, value uint32) uint32 {
	return value&0xFFFF_F000 | rd<<7 | 0x37
}

// encJAL encodes "jal rd, offset" with the J-type immediate scramble.
func encJAL(rd uint32, offset int32) uint32 {
	o := uint32(offset)
	imm := (o>>20&1)<<31 | (o>>1&0x3FF)<<21 | (o>>11&1)<<20 | (o>>12&0xFF)<<12
	return imm | rd<<7 | 0x6F
}

// encCSRR encodes "csrr rd, csr" (csrrs rd, csr, x0).
func encCSRR(rd, csr uint32) uint32 {
	return csr<<20 | 2<<12 | rd<<7 | 0x73
}

// encCSRW encodes "csrw csr, rs1" (csrrw x0, csr, rs1).
func encCSRW(csr, rs1 uint32) uint32 {
	return csr<<20 | rs1<<15 | 1<<12 | 0x73
}

// encCSRS encodes "csrs csr, rs1" (csrrs x0, csr, rs1).
func encCSRS(csr, rs1 uint32) uint32 {
	return csr<<20 | rs1<<15 | 2<<12 | 0x73
}

// encCSRSI encodes "csrsi csr, uimm" (csrrsi x0, csr, uimm).
func encCSRSI(csr, uimm uint32) uint32 {
	return csr<<20 | (uimm&0x1F)<<15 | 6<<12 | 0x73
}

// encCSRCI encodes "csrci csr, uimm" (csrrci x0, csr, uimm).
func encCSRCI(csr, uimm uint32) uint32 {
	return csr<<20 | (uimm&0x1F)<<15 | 7<<12 | 0x73
}

// ramSlot returns the target address of debug RAM word i, for use as a
// load/store immediate with the zero register as base.
func ramSlot(i int) int32 {
	return int32(debugRAMBase) + int32(i)*4
}

// jalResume encodes the jump from debug RAM word i back to the debug ROM
// resume vector; every stub ends with one.
func jalResume(i int) uint32 {
	return encJAL(regZero, int32(debugResume)-ramSlot(i))
}
