// Package target defines the architecture-neutral contract between the debug
// probe core and per-architecture drivers. A driver discovers a compatible
// chip on the scan chain and yields one Target per attached core; everything
// above this package (command loop, remote protocol servers) talks only to
// the Target interface.
package target

import "errors"

// HaltReason describes why a target core is stopped, or that it is not.
type HaltReason int

const (
	Running HaltReason = iota
	HaltBreakpoint
	HaltRequest
	HaltStepping
	HaltError
)

var haltReasonNames = map[HaltReason]string{
	Running:        "running",
	HaltBreakpoint: "breakpoint",
	HaltRequest:    "halt request",
	HaltStepping:   "single step",
	HaltError:      "error",
}

func (r HaltReason) String() string {
	if name, ok := haltReasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// BreakKind selects the comparator condition of a hardware break/watchpoint.
type BreakKind int

const (
	BreakExecute BreakKind = iota
	WatchWrite
	WatchRead
	WatchAccess
)

var breakKindNames = map[BreakKind]string{
	BreakExecute: "breakpoint",
	WatchWrite:   "write watchpoint",
	WatchRead:    "read watchpoint",
	WatchAccess:  "access watchpoint",
}

func (k BreakKind) String() string {
	if name, ok := breakKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// BreakWatch is a hardware break/watchpoint record. The framework owns it;
// the driver fills Slot when the trigger is set and consumes it on clear.
// Slot is opaque above the driver.
type BreakWatch struct {
	Kind BreakKind
	Addr uint32
	Size uint32

	Slot uint32
	set  bool
}

// Active reports whether the record currently holds a programmed trigger.
func (bw *BreakWatch) Active() bool { return bw.set }

// MarkSet records the hardware slot backing this trigger.
func (bw *BreakWatch) MarkSet(slot uint32) {
	bw.Slot = slot
	bw.set = true
}

// MarkCleared releases the record.
func (bw *BreakWatch) MarkCleared() {
	bw.Slot = 0
	bw.set = false
}

// ErrNotSet is returned when clearing a break/watchpoint that was never
// successfully programmed.
var ErrNotSet = errors.New("target: break/watchpoint not set")

// Target is the capability set every architecture driver provides. All
// methods are synchronous and may block on probe I/O; callers must serialize
// access to one Target from a single control-flow context.
type Target interface {
	// Name identifies the driver ("RISC-V", ...).
	Name() string
	// Description returns the target description document consumed by
	// remote debugging clients.
	Description() string
	// RegsSize is the size in bytes of the register block transferred by
	// RegsRead/RegsWrite.
	RegsSize() int

	Attach() error
	Detach() error
	// CheckError reports and clears a latched transport error. A true
	// return means results since the last check must be discarded.
	CheckError() bool

	MemRead(addr uint32, buf []byte) error
	MemWrite(addr uint32, data []byte) error

	RegRead(reg int) (uint32, error)
	RegWrite(reg int, value uint32) error
	RegsRead() ([]uint32, error)
	RegsWrite(values []uint32) error

	Reset() error

	HaltRequest() error
	HaltPoll() (HaltReason, error)
	Resume(step bool) error

	BreakWatchSet(bw *BreakWatch) error
	BreakWatchClear(bw *BreakWatch) error
}
