package jtag

import "fmt"

// ShiftRegion identifies whether a shift operation targets the instruction or
// data register column of the TAP diagram.
type ShiftRegion uint8

const (
	ShiftRegionIR ShiftRegion = iota
	ShiftRegionDR
)

func (r ShiftRegion) String() string {
	if r == ShiftRegionIR {
		return "IR"
	}
	return "DR"
}

// ShiftHook lets a test supply device-specific TDO behavior. Returning an
// error aborts the shift as a hardware fault would.
type ShiftHook func(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error)

// ShiftOp is one recorded shift request.
type ShiftOp struct {
	Region ShiftRegion
	TMS    []byte
	TDI    []byte
	Bits   int
}

func (op ShiftOp) clone() ShiftOp {
	return ShiftOp{
		Region: op.Region,
		TMS:    append([]byte(nil), op.TMS...),
		TDI:    append([]byte(nil), op.TDI...),
		Bits:   op.Bits,
	}
}

// SimAdapter is an in-memory Adapter for tests. It records every shift
// request in order, so a test can replay a whole bus conversation, and
// answers TDO either through OnShift or by echoing TDI.
type SimAdapter struct {
	InfoData AdapterInfo
	SpeedHz  int

	OnShift ShiftHook

	history []ShiftOp
	resets  int
}

// NewSimAdapter constructs a simulator reporting the provided AdapterInfo.
func NewSimAdapter(info AdapterInfo) *SimAdapter {
	return &SimAdapter{InfoData: info}
}

// History returns copies of every shift requested so far, oldest first.
func (s *SimAdapter) History() []ShiftOp {
	out := make([]ShiftOp, len(s.history))
	for i, op := range s.history {
		out[i] = op.clone()
	}
	return out
}

// LastShift returns a copy of the most recent shift request.
func (s *SimAdapter) LastShift() ShiftOp {
	if len(s.history) == 0 {
		return ShiftOp{}
	}
	return s.history[len(s.history)-1].clone()
}

// Resets reports how many TAP resets have been requested.
func (s *SimAdapter) Resets() int { return s.resets }

func (s *SimAdapter) Info() (AdapterInfo, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionIR, tms, tdi, bits)
}

func (s *SimAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionDR, tms, tdi, bits)
}

func (s *SimAdapter) ResetTAP(hard bool) error {
	s.resets++
	return nil
}

func (s *SimAdapter) SetSpeed(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("jtag: invalid speed %dHz", hz)
	}
	s.SpeedHz = hz
	return nil
}

func (s *SimAdapter) shift(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}

	op := ShiftOp{Region: region, TMS: tms, TDI: tdi, Bits: bits}
	s.history = append(s.history, op.clone())

	if s.OnShift != nil {
		return s.OnShift(region, tms, tdi, bits)
	}

	// Default: echo TDI to TDO to keep tests predictable.
	tdo := make([]byte, (bits+7)/8)
	copy(tdo, tdi)
	return tdo, nil
}
