// Package riscv drives RISC-V targets over the JTAG Debug Transport Module,
// following the external debug specification draft 0.11: DTM version 0,
// Debug Module version 1, single RV32 hart.
package riscv

import "errors"

// DebugPort is the JTAG access the driver needs from the scan layer: select
// an instruction register, shift a debug-bus word, burn idle cycles.
// *scan.Port satisfies it.
type DebugPort interface {
	WriteIR(code uint32) error
	ShiftDR(out uint64, bits int) (uint64, error)
	Idle(cycles int) error
}

// DTM instruction register codes.
const (
	irIDCode     uint32 = 0x01
	irDTMControl uint32 = 0x10
	irDBus       uint32 = 0x11
	irBypass     uint32 = 0x1F
)

const dtmControlReset uint64 = 1 << 16

// Debug bus opcodes, in the low 2 bits of every transaction word.
const (
	dbusNOP   uint64 = 0
	dbusRead  uint64 = 1
	dbusWrite uint64 = 2
)

// Debug bus response status, in the low 2 bits of every response word.
const (
	dbusStatusOK    = 0
	dbusStatusError = 2
	dbusStatusBusy  = 3
)

const (
	dbusDataBits        = 34
	dbusDataMask uint64 = 1<<dbusDataBits - 1

	// Within the 34-bit data field, bit 33 is the debug interrupt and bit
	// 32 the halt notification.
	dbusInterrupt uint64 = 1 << 33
	dbusHaltNot   uint64 = 1 << 32
)

// Debug Module bus addresses.
const (
	addrDMControl uint32 = 0x10
	addrDMInfo    uint32 = 0x11
)

const (
	// The bus reports busy when a transaction arrives while the previous
	// one is still in flight; the retry budget bounds recovery attempts
	// before the session is declared failed.
	busyRetryLimit = 8

	// Polls of the execution-complete flag before a debug RAM program is
	// declared hung.
	execPollLimit = 1024
)

var (
	// ErrTransportFault is returned once the sticky error latch is set;
	// every bus transaction short-circuits until CheckError clears it.
	ErrTransportFault = errors.New("riscv: debug bus fault latched")

	// ErrTransportBusy means the bus stayed busy through the whole retry
	// budget.
	ErrTransportBusy = errors.New("riscv: debug bus stuck busy")

	// ErrExecTimeout means an uploaded debug RAM program never signalled
	// completion; the result of the operation must be discarded.
	ErrExecTimeout = errors.New("riscv: debug program timed out")
)

// DTM is one debug session with a RISC-V Debug Transport Module. It is
// created by discovery and owned by the target for the session's lifetime;
// all access must come from a single control-flow context.
type DTM struct {
	port DebugPort

	version   uint8 // dtmcontrol version field; only 0 is accepted
	abits     uint8 // debug bus address bits
	idle      uint8 // run-test/idle cycles required after each transaction
	dramWords uint8 // debug RAM size in words, minus one (hardware encoding)

	stickyErr     bool
	lastDBus      uint64
	haltRequested bool
}

// Version reports the DTM protocol version from dtmcontrol.
func (d *DTM) Version() uint8 { return d.version }

// AddressBits reports the debug bus address field width.
func (d *DTM) AddressBits() uint8 { return d.abits }

// IdleCycles reports the required run-test/idle cycles per transaction.
func (d *DTM) IdleCycles() uint8 { return d.idle }

// DebugRAMWords reports the debug RAM size in words, minus one.
func (d *DTM) DebugRAMWords() uint8 { return d.dramWords }

// packDBus assembles a debug bus word: [abits:address][34:data][2:opcode].
func packDBus(abits uint8, addr uint32, data uint64, op uint64) (word uint64, bits int) {
	return uint64(addr)<<36 | (data&dbusDataMask)<<2 | op&3, 36 + int(abits)
}

// unpackDBus splits a debug bus word back into its fields.
func unpackDBus(abits uint8, word uint64) (addr uint32, data uint64, op uint64) {
	addr = uint32(word>>36) & (1<<abits - 1)
	data = (word >> 2) & dbusDataMask
	op = word & 3
	return
}

// reset issues a debug bus reset through dtmcontrol, clearing any busy or
// error latch on the hardware side. The session's own sticky error is not
// touched. The caller must re-select the dbus instruction register afterward.
func (d *DTM) reset() error {
	if err := d.port.WriteIR(irDTMControl); err != nil {
		return err
	}
	_, err := d.port.ShiftDR(dtmControlReset, 32)
	return err
}

// lowAccess shifts one debug bus word and interprets the response status. On
// busy it resets the bus and re-shifts the last successfully written word
// before retrying the same payload; retries are bounded. A protocol error
// sets the sticky latch.
func (d *DTM) lowAccess(dbus uint64) (uint64, error) {
	if d.stickyErr {
		return 0, ErrTransportFault
	}
	width := 36 + int(d.abits)

	for attempt := 0; ; attempt++ {
		ret, err := d.port.ShiftDR(dbus, width)
		if err != nil {
			d.stickyErr = true
			return 0, err
		}

		switch ret & 3 {
		case dbusStatusBusy:
			if attempt >= busyRetryLimit {
				d.stickyErr = true
				return 0, ErrTransportBusy
			}
			// The aborted transaction must be replayed with the same
			// payload, not a NOP.
			if err := d.reset(); err != nil {
				d.stickyErr = true
				return 0, err
			}
			if err := d.port.WriteIR(irDBus); err != nil {
				d.stickyErr = true
				return 0, err
			}
			if _, err := d.port.ShiftDR(d.lastDBus, width); err != nil {
				d.stickyErr = true
				return 0, err
			}
			if err := d.port.Idle(int(d.idle)); err != nil {
				d.stickyErr = true
				return 0, err
			}
			continue

		case dbusStatusOK:
			d.lastDBus = dbus
			if err := d.port.Idle(int(d.idle)); err != nil {
				d.stickyErr = true
				return 0, err
			}
			return (ret >> 2) & dbusDataMask, nil

		default:
			d.stickyErr = true
			return 0, ErrTransportFault
		}
	}
}

// write posts a debug bus write of data to addr.
func (d *DTM) write(addr uint32, data uint64) error {
	word, _ := packDBus(d.abits, addr, data, dbusWrite)
	_, err := d.lowAccess(word)
	return err
}

// read fetches a debug bus address. The bus pipelines reads, so the address
// is latched first and the data collected with a following NOP.
func (d *DTM) read(addr uint32) (uint64, error) {
	word, _ := packDBus(d.abits, addr, 0, dbusRead)
	if _, err := d.lowAccess(word); err != nil {
		return 0, err
	}
	return d.lowAccess(dbusNOP)
}

// CheckError reports whether a transport error has been latched since the
// last check. When one has, the bus is reset and the latch cleared; results
// obtained since the previous check must be treated as invalid.
func (d *DTM) CheckError() bool {
	if !d.stickyErr {
		return false
	}
	// Best effort: the session is already known bad if these fail too.
	_ = d.reset()
	_ = d.port.WriteIR(irDBus)
	d.stickyErr = false
	return true
}
