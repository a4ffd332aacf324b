package jtag

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// CMSIS-DAP command IDs used by this adapter.
const (
	cmdInfo         = 0x00
	cmdConnect      = 0x02
	cmdDisconnect   = 0x03
	cmdResetTarget  = 0x0A
	cmdSWJClock     = 0x11
	cmdJTAGSequence = 0x14
)

// DAP_Info IDs.
const (
	infoVendorID    = 0x01
	infoProductID   = 0x02
	infoSerialNum   = 0x03
	infoFirmwareVer = 0x04
)

const (
	portJTAG = 2

	statusOK = 0x00

	seqTCKMask = 0x3F // bits [5:0] = TCK count (0 means 64)
	seqTMS     = 0x40 // bit [6] = TMS value held for the sequence
	seqTDO     = 0x80 // bit [7] = capture TDO
)

// dapSequence is one DAP_JTAG_Sequence segment: a run of TCK cycles with a
// constant TMS level.
type dapSequence struct {
	info byte
	tdi  []byte
}

func newDAPSequence(tckCount int, tms, captureTDO bool, tdi []byte) dapSequence {
	info := byte(tckCount & seqTCKMask)
	if tms {
		info |= seqTMS
	}
	if captureTDO {
		info |= seqTDO
	}
	return dapSequence{info: info, tdi: tdi}
}

// CMSISDAPAdapter implements Adapter for CMSIS-DAP probes over USB.
type CMSISDAPAdapter struct {
	transport *USBTransport

	info      AdapterInfo
	speedHz   int
	connected bool

	mu sync.Mutex
}

// NewCMSISDAPAdapter opens the probe, connects its JTAG port and applies a
// default 1 MHz TCK clock. serial may be empty when only one probe is
// attached.
func NewCMSISDAPAdapter(vid, pid uint16, serial string) (*CMSISDAPAdapter, error) {
	transport, err := NewUSBTransport(vid, pid, serial)
	if err != nil {
		return nil, err
	}

	a := &CMSISDAPAdapter{transport: transport, speedHz: 1_000_000}
	if err := a.queryInfo(); err != nil {
		transport.Close()
		return nil, fmt.Errorf("jtag: query probe info: %w", err)
	}
	if err := a.connect(); err != nil {
		transport.Close()
		return nil, fmt.Errorf("jtag: connect JTAG: %w", err)
	}
	if err := a.SetSpeed(a.speedHz); err != nil {
		transport.Close()
		return nil, fmt.Errorf("jtag: set default speed: %w", err)
	}
	return a, nil
}

func (a *CMSISDAPAdapter) queryInfo() error {
	get := func(id byte) string {
		resp, err := a.transport.WriteRead([]byte{cmdInfo, id})
		if err != nil || len(resp) < 2 || resp[0] != cmdInfo {
			return ""
		}
		length := int(resp[1])
		if len(resp) < 2+length {
			return ""
		}
		return string(resp[2 : 2+length])
	}

	a.info = AdapterInfo{
		Name:         "CMSIS-DAP Probe",
		Vendor:       get(infoVendorID),
		Model:        get(infoProductID),
		SerialNumber: get(infoSerialNum),
		Firmware:     get(infoFirmwareVer),
		MinFrequency: 1000,
		MaxFrequency: 10_000_000,
		SupportsSRST: true,
		SupportsTRST: true,
	}
	return nil
}

func (a *CMSISDAPAdapter) connect() error {
	resp, err := a.transport.WriteRead([]byte{cmdConnect, portJTAG})
	if err != nil {
		return err
	}
	if len(resp) < 2 || resp[0] != cmdConnect || resp[1] != portJTAG {
		return fmt.Errorf("jtag: JTAG port unavailable")
	}
	a.connected = true
	return nil
}

// Info returns adapter capabilities.
func (a *CMSISDAPAdapter) Info() (AdapterInfo, error) {
	return a.info, nil
}

// ShiftIR shifts bits while the TAP walks through the IR column.
func (a *CMSISDAPAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shift(tms, tdi, bits)
}

// ShiftDR shifts bits while the TAP walks through the DR column.
func (a *CMSISDAPAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shift(tms, tdi, bits)
}

func (a *CMSISDAPAdapter) shift(tms, tdi []byte, bits int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}

	seqs := buildSequences(tms, tdi, bits)
	resp, err := a.transport.WriteRead(encodeSequences(seqs))
	if err != nil {
		return nil, fmt.Errorf("jtag: shift failed: %w", err)
	}
	return decodeSequences(resp, seqs, bits)
}

// buildSequences splits a per-bit-TMS shift into CMSIS-DAP segments, each of
// which holds TMS constant for up to 64 TCK cycles.
func buildSequences(tms, tdi []byte, bits int) []dapSequence {
	bitAt := func(buf []byte, i int) bool {
		if len(buf) == 0 {
			return false
		}
		return buf[i/8]&(1<<(i%8)) != 0
	}

	var seqs []dapSequence
	pos := 0
	for pos < bits {
		level := bitAt(tms, pos)
		run := 0
		for pos+run < bits && run < 64 && bitAt(tms, pos+run) == level {
			run++
		}

		chunk := make([]byte, (run+7)/8)
		for i := 0; i < run; i++ {
			if bitAt(tdi, pos+i) {
				chunk[i/8] |= 1 << (i % 8)
			}
		}
		seqs = append(seqs, newDAPSequence(run, level, true, chunk))
		pos += run
	}
	return seqs
}

func encodeSequences(seqs []dapSequence) []byte {
	size := 2
	for _, seq := range seqs {
		size += 1 + len(seq.tdi)
	}
	cmd := make([]byte, 2, size)
	cmd[0] = cmdJTAGSequence
	cmd[1] = byte(len(seqs))
	for _, seq := range seqs {
		cmd = append(cmd, seq.info)
		cmd = append(cmd, seq.tdi...)
	}
	return cmd
}

func decodeSequences(resp []byte, seqs []dapSequence, bits int) ([]byte, error) {
	if len(resp) < 2 || resp[0] != cmdJTAGSequence {
		return nil, fmt.Errorf("jtag: malformed sequence response")
	}
	if resp[1] != statusOK {
		return nil, fmt.Errorf("jtag: sequence rejected by probe")
	}

	tdo := make([]byte, (bits+7)/8)
	bitPos := 0
	offset := 2
	for _, seq := range seqs {
		if seq.info&seqTDO == 0 {
			continue
		}
		count := int(seq.info & seqTCKMask)
		if count == 0 {
			count = 64
		}
		chunkLen := (count + 7) / 8
		if offset+chunkLen > len(resp) {
			return nil, fmt.Errorf("jtag: truncated TDO data")
		}
		for i := 0; i < count && bitPos < bits; i++ {
			if resp[offset+i/8]&(1<<(i%8)) != 0 {
				tdo[bitPos/8] |= 1 << (bitPos % 8)
			}
			bitPos++
		}
		offset += chunkLen
	}
	return tdo, nil
}

// ResetTAP resets the TAP state machine. A hard reset pulses the probe's
// target-reset command; a soft reset clocks five TCK cycles with TMS high.
func (a *CMSISDAPAdapter) ResetTAP(hard bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hard {
		resp, err := a.transport.WriteRead([]byte{cmdResetTarget})
		if err != nil {
			return fmt.Errorf("jtag: hard reset: %w", err)
		}
		if len(resp) < 2 || resp[1] != statusOK {
			return fmt.Errorf("jtag: hard reset rejected")
		}
		return nil
	}

	seq := newDAPSequence(5, true, false, []byte{0x00})
	resp, err := a.transport.WriteRead(encodeSequences([]dapSequence{seq}))
	if err != nil {
		return fmt.Errorf("jtag: TAP reset: %w", err)
	}
	if len(resp) < 2 || resp[1] != statusOK {
		return fmt.Errorf("jtag: TAP reset rejected")
	}
	return nil
}

// SetSpeed sets the TCK frequency.
func (a *CMSISDAPAdapter) SetSpeed(hz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hz < a.info.MinFrequency || hz > a.info.MaxFrequency {
		return fmt.Errorf("jtag: frequency %d Hz out of range [%d, %d]",
			hz, a.info.MinFrequency, a.info.MaxFrequency)
	}

	cmd := make([]byte, 5)
	cmd[0] = cmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], uint32(hz))
	resp, err := a.transport.WriteRead(cmd)
	if err != nil {
		return fmt.Errorf("jtag: set speed: %w", err)
	}
	if len(resp) < 2 || resp[1] != statusOK {
		return fmt.Errorf("jtag: set speed rejected")
	}
	a.speedHz = hz
	return nil
}

// Close disconnects the probe and releases USB resources.
func (a *CMSISDAPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		a.transport.WriteRead([]byte{cmdDisconnect})
		a.connected = false
	}
	return a.transport.Close()
}
