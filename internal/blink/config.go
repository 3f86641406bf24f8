// Package blink implements the slotted, multi-hop beacon/data protocol:
// epoch and slot timing, beacon-driven synchronisation, hop-count
// convergence, beacon rebroadcast, data forwarding, CAD-gated reception,
// drift correction and loss-of-sync detection.
package blink

import "github.com/mbor/blink/internal/timing"

const (
	RootID         uint8 = 0x00
	DestBroadcast  uint8 = 0xFF
	unsyncedHop    uint8 = 0xFF
)

// Config holds what would otherwise be compile-time constants or build
// tags, exposed instead as runtime fields — idiomatic for a Go library,
// and it lets something like CAD-gated reception be a per-deployment
// choice rather than a build-time one.
type Config struct {
	TimeSlotMillis   int
	TimeSlots        int
	BeaconSlots      int
	MaxBeaconHops    uint8
	MaxDataHops      uint8
	MaxPayloadLen    int
	MaxMissedBeacons int
	MaxDriftMillis   int
	CADChecks        int
	UseCAD           bool

	ParamSet   timing.ParamSet
	Frequency  uint64
	TXPowerDBm int
}

// DefaultConfig returns the standard deployment defaults.
func DefaultConfig() Config {
	var beaconSlots = 5
	return Config{
		TimeSlotMillis:   5000,
		TimeSlots:        60,
		BeaconSlots:      beaconSlots,
		MaxBeaconHops:    5,
		MaxDataHops:      5,
		MaxPayloadLen:    6,
		MaxMissedBeacons: beaconSlots * 3,
		MaxDriftMillis:   400,
		CADChecks:        3,
		UseCAD:           false,
		ParamSet:         timing.DefaultParamSet,
		Frequency:        timing.DefaultFrequencyHz,
		TXPowerDBm:       timing.DefaultTXPowerDBm,
	}
}

// OpMode is the node's capability/activity set: multiple bits are
// legitimately concurrent (e.g. READY|TRACK|RXBCN), so it is modelled
// as a bitset rather than an exclusive enum.
type OpMode uint16

const (
	OpReady OpMode = 1 << iota
	OpScan
	OpTrack
	OpTXBcn
	OpTXData
	OpRXBcn
	OpRXData
	OpRoot
	OpNode
)

func (m OpMode) Has(flag OpMode) bool { return m&flag != 0 }
func (m OpMode) With(flag OpMode) OpMode    { return m | flag }
func (m OpMode) Without(flag OpMode) OpMode { return m &^ flag }

func (m OpMode) String() string {
	var letters = []struct {
		flag OpMode
		ch   byte
	}{
		{OpReady, 'r'}, {OpScan, 's'}, {OpTrack, 't'}, {OpTXBcn, 'B'},
		{OpTXData, 'D'}, {OpRXBcn, 'b'}, {OpRXData, 'd'}, {OpRoot, '0'}, {OpNode, 'n'},
	}
	var buf = make([]byte, 0, len(letters)+2)
	buf = append(buf, '[')
	for _, l := range letters {
		if m.Has(l.flag) {
			buf = append(buf, l.ch)
		} else {
			buf = append(buf, '.')
		}
	}
	buf = append(buf, ']')
	return string(buf)
}

// Event is one of the four upper-layer notifications a Node reports.
type Event int

const (
	EventSync Event = iota + 1
	EventLostSync
	EventRXComplete
	EventTXComplete
)

func (e Event) String() string {
	switch e {
	case EventSync:
		return "SYNC"
	case EventLostSync:
		return "LOST_SYNC"
	case EventRXComplete:
		return "RXCOMPLETE"
	case EventTXComplete:
		return "TXCOMPLETE"
	default:
		return "UNKNOWN"
	}
}
