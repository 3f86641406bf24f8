package blink

import (
	"fmt"

	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/sched"
	"github.com/mbor/blink/internal/timing"
)

// slotKind classifies the current slot within the epoch: the first
// BeaconSlots slots carry beacon traffic, the rest carry data.
type slotKind int

const (
	slotBeacon slotKind = iota
	slotData
)

// awaitKind names which completion handler HandleCompletion should route
// to next, keyed off the (opmode, slot kind, last radio command) triple
// rather than re-deriving it from scratch on every completion.
type awaitKind int

const (
	awaitNone awaitKind = iota
	awaitScanRX
	awaitCAD
	awaitBeaconRX
	awaitDataRX
	awaitBeaconTX
	awaitDataTX
)

// Node holds one node's entire protocol state, plus the Go collaborators
// (radio, scheduler, clock) a real deployment binds it to.
type Node struct {
	cfg Config
	id  uint8

	opmode        OpMode
	slot          int
	hop           uint8
	hopUpdated    bool
	missedBeacons int

	pendingBeaconTX  bool
	pendingDataTX    bool // own origination
	pendingForwardTX bool // relayed on another node's behalf
	pendingDataRX    bool

	beaconTX  frame.Beacon
	dataTX    frame.Data
	forwardTX frame.Data
	dataRXBuf []byte
	txIsOwn   bool

	cadCounter int
	scanning   bool
	awaiting   awaitKind

	radio radio.Radio
	sched *sched.Scheduler
	clock sched.Clock

	wakeupJob *sched.Job

	onEvent func(Event)
}

// New constructs a Node bound to its radio, scheduler and clock. Reset
// must be called before StartSync.
func New(cfg Config, nodeID uint8, r radio.Radio, s *sched.Scheduler, clock sched.Clock) *Node {
	return &Node{
		cfg:       cfg,
		id:        nodeID,
		radio:     r,
		sched:     s,
		clock:     clock,
		wakeupJob: sched.NewJob("blink-wakeup"),
		dataRXBuf: make([]byte, 0, cfg.MaxPayloadLen),
	}
}

// SetEventHandler installs the callback through which SYNC, LOST_SYNC,
// RXCOMPLETE and TXCOMPLETE are reported.
func (n *Node) SetEventHandler(fn func(Event)) { n.onEvent = fn }

func (n *Node) emit(e Event) {
	if n.onEvent != nil {
		n.onEvent(e)
	}
}

// Reset re-initialises node state: READY plus ROOT or NODE depending on
// id, hop distance unknown unless root, and slot parked one past the end
// of the epoch so the first wake-up wraps it to 0.
func (n *Node) Reset() error {
	if err := n.radio.Reset(); err != nil {
		return fmt.Errorf("blink: resetting radio: %w", err)
	}
	n.opmode = OpReady
	n.slot = n.cfg.TimeSlots
	n.hopUpdated = false
	n.missedBeacons = 0
	n.pendingBeaconTX = false
	n.pendingDataTX = false
	n.pendingForwardTX = false
	n.pendingDataRX = false
	n.awaiting = awaitNone
	n.cadCounter = n.cfg.CADChecks

	if n.id == RootID {
		n.opmode = n.opmode.With(OpRoot)
		n.hop = 0
	} else {
		n.opmode = n.opmode.With(OpNode)
		n.hop = unsyncedHop
	}
	return nil
}

// StartSync begins network entry: the root starts its wake-up cadence
// immediately, everyone else starts scanning for a first beacon.
func (n *Node) StartSync() {
	if n.opmode.Has(OpRoot) {
		n.sched.SetCallback(n.wakeupJob, n.onWakeup)
		return
	}
	n.beginScan()
}

// Hop, Slot, OpMode, MissedBeacons and ID are read-only accessors for
// tests and diagnostics/logging.
func (n *Node) Hop() uint8             { return n.hop }
func (n *Node) Slot() int              { return n.slot }
func (n *Node) OpMode() OpMode         { return n.opmode }
func (n *Node) MissedBeacons() int     { return n.missedBeacons }
func (n *Node) ID() uint8              { return n.id }
func (n *Node) PendingDataRX() bool    { return n.pendingDataRX }
func (n *Node) PendingBeaconTX() bool  { return n.pendingBeaconTX }
func (n *Node) PendingDataTX() bool    { return n.pendingDataTX }
func (n *Node) PendingForwardTX() bool { return n.pendingForwardTX }

// NextWakeupDeadline reports the clock tick at which the node's
// recurring wake-up is next scheduled to fire, for tests that verify
// drift correction and skip-ahead scheduling directly.
func (n *Node) NextWakeupDeadline() (timing.Ticks, bool) { return n.sched.Deadline(n.wakeupJob) }

// TX stages payload for transmission at the node's next data slot
// (blink_tx()). It reports whether the payload was accepted: one frame
// may be staged at a time, and oversized payloads are refused outright
// rather than truncated.
func (n *Node) TX(payload []byte) bool {
	if len(payload) > n.cfg.MaxPayloadLen {
		return false
	}
	if n.pendingDataTX {
		return false
	}
	// Every data frame on the network carries MaxPayloadLen bytes of
	// payload on air; a shorter submission is zero-padded out to that
	// fixed width rather than varying the frame size per submission.
	var padded = make([]byte, n.cfg.MaxPayloadLen)
	copy(padded, payload)
	var footer = frame.Footer{}.WithTraceFragment(0, n.id)
	n.dataTX = frame.Data{
		Header:  frame.Header{Type: frame.TypeData, Hop: n.hop, Dest: RootID},
		Payload: padded,
		Footer:  footer,
	}
	n.pendingDataTX = true
	return true
}

// RX copies the most recently received payload addressed to this node
// into buf, returning the number of bytes copied, and clears the
// pending-receive flag (blink_rx()).
func (n *Node) RX(buf []byte) int {
	if !n.pendingDataRX {
		return 0
	}
	var nCopied = copy(buf, n.dataRXBuf)
	n.pendingDataRX = false
	return nCopied
}

func (n *Node) classifySlot() slotKind {
	if n.slot < n.cfg.BeaconSlots {
		return slotBeacon
	}
	return slotData
}

// nextSlot advances the epoch counter, wrapping at TimeSlots and
// clearing the per-epoch hop-update latch on wrap so the next epoch's
// first beacon is free to move this node's hop again.
func (n *Node) nextSlot() {
	n.slot++
	if n.slot >= n.cfg.TimeSlots {
		n.slot = 0
		n.hopUpdated = false
	}
}

func (n *Node) slotTicks() timing.Ticks { return timing.MillisToTicks(n.cfg.TimeSlotMillis) }

// onWakeup is the recurring per-slot tick shared by root and non-root
// nodes alike: the only role-specific step is the root staging its own
// beacon at slot 0; the next deadline is derived the same way for both.
func (n *Node) onWakeup() {
	var now = n.clock.Now()
	n.nextSlot()

	if n.opmode.Has(OpRoot) && n.slot == 0 {
		n.stageRootBeacon()
	}

	switch n.classifySlot() {
	case slotBeacon:
		if n.pendingBeaconTX {
			n.issueBeaconTX()
		} else {
			n.issueBeaconRX()
		}
	case slotData:
		if n.pendingDataTX || n.pendingForwardTX {
			n.issueDataTX()
		} else {
			n.issueDataRX()
		}
	}

	// Skip-ahead rather than pile-up: if the handler ran late enough that
	// now+slot has already passed, schedule from the current time instead
	// of compounding the backlog into a burst of immediately-due wake-ups.
	var next = now.Add(n.slotTicks())
	if cur := n.clock.Now(); cur > next {
		next = cur
	}
	n.sched.SetTimedCallback(n.wakeupJob, next, n.onWakeup)
}

// HandleCompletion routes a radio completion to the handler for
// whatever command produced it. Callers (the scheduler pump in
// production, test code directly) must deliver completions serially, on
// the same goroutine that drives the scheduler — concurrency is the
// radio facade's problem, not the protocol core's.
func (n *Node) HandleCompletion(st radio.Status) {
	switch n.awaiting {
	case awaitScanRX:
		n.onScanRX(st)
	case awaitCAD:
		n.onCADDone(st)
	case awaitBeaconRX:
		n.onBeaconRXDone(st)
	case awaitDataRX:
		n.onDataRXDone(st)
	case awaitBeaconTX:
		n.onTXDone(st, true)
	case awaitDataTX:
		n.onTXDone(st, false)
	case awaitNone:
		panic("blink: radio completion while no operation was expected")
	}
}
