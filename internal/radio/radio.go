// Package radio defines the five-command radio facade the protocol core
// drives (RST, TX, RX, RXON, CAD) and the completion status it reports
// back through, plus the two concrete backends: a simulated one for
// tests and the blink CLI's -sim mode, and a Linux hardware one for a
// real CSS radio module.
package radio

import (
	"fmt"

	"github.com/mbor/blink/internal/timing"
)

// Op identifies which of the five radio commands produced a Status.
type Op uint8

const (
	OpReset Op = iota
	OpTransmit
	OpReceiveContinuous
	OpReceiveTimed
	OpCAD
)

func (o Op) String() string {
	switch o {
	case OpReset:
		return "RST"
	case OpTransmit:
		return "TX"
	case OpReceiveContinuous:
		return "RXON"
	case OpReceiveTimed:
		return "RX"
	case OpCAD:
		return "CAD"
	default:
		return "?"
	}
}

// Status is the completion report delivered exactly once per issued
// command: received length, CRC/header validity, CAD result, signal
// quality and receive timestamp.
type Status struct {
	Op          Op
	Frame       []byte // valid iff Length > 0 and !CRCError
	Length      int
	CRCError    bool
	ValidHeader bool
	CADDetected bool
	RSSI        int8
	SNR         int8
	RxTime      timing.Ticks
}

// Radio is the facade the protocol core is built against. Implementations
// must deliver exactly one Status per issued command on the Completions
// channel, and must reject a new command while one is already
// outstanding (ErrBusy) — the single-outstanding-operation invariant is
// the facade's responsibility, not the protocol core's.
type Radio interface {
	Reset() error
	Transmit(frame []byte) error
	ReceiveContinuous() error
	ReceiveTimed(symbols int) error
	CAD() error
	Completions() <-chan Status
}

// ErrBusy is returned when a command is issued while another is still
// outstanding. The discipline a caller follows is to always Reset before
// changing modes if a callback is still pending; a well-behaved caller
// never sees this.
var ErrBusy = fmt.Errorf("radio: command already in flight")
