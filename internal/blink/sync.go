package blink

import (
	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/timing"
)

// beginScan enters SCAN mode: listen continuously (CAD-gated if
// configured) for the first beacon heard, with no slot schedule yet to
// align to — blink_start_sync()'s non-root branch.
func (n *Node) beginScan() {
	n.opmode = n.opmode.With(OpScan)
	n.scanning = true
	n.issueScan()
}

func (n *Node) issueScan() {
	if n.cfg.UseCAD {
		n.awaiting = awaitCAD
		n.radio.CAD()
		return
	}
	n.awaiting = awaitScanRX
	n.radio.ReceiveContinuous()
}

// onScanRX handles a completion while scanning for the first beacon:
// anything that isn't a well-formed beacon is ignored and scanning
// resumes.
func (n *Node) onScanRX(st radio.Status) {
	if st.Length > 0 && !st.CRCError {
		if b, err := frame.DecodeBeacon(st.Frame[:st.Length]); err == nil {
			n.onFirstBeacon(b, st.RxTime)
			return
		}
	}
	n.issueScan()
}

// onCADDone handles a CAD completion for both scanning and slot-aligned
// reception. During scan, a clear channel simply restarts
// the CAD poll indefinitely — there is no schedule yet to time out
// against. Once slot-aligned, CADChecks bounds the retry count, and
// exhausting it without activity is itself treated as a miss (a missed
// beacon if the slot was a beacon slot).
func (n *Node) onCADDone(st radio.Status) {
	if st.CADDetected {
		if n.scanning {
			n.awaiting = awaitScanRX
			n.radio.ReceiveContinuous()
			return
		}
		if n.opmode.Has(OpRXBcn) {
			n.awaiting = awaitBeaconRX
			n.radio.ReceiveTimed(timing.RxSymbolTimeout(n.cfg.ParamSet, frame.BeaconSize))
		} else {
			n.awaiting = awaitDataRX
			n.radio.ReceiveTimed(timing.RxSymbolTimeout(n.cfg.ParamSet, frame.DataSize(n.cfg.MaxPayloadLen)))
		}
		return
	}

	if n.scanning {
		n.radio.CAD()
		return
	}

	if n.cadCounter > 0 {
		n.cadCounter--
		n.radio.CAD()
		return
	}

	n.cadCounter = n.cfg.CADChecks
	if n.opmode.Has(OpRXBcn) {
		n.opmode = n.opmode.Without(OpRXBcn)
		n.missedBeacon()
	} else {
		n.opmode = n.opmode.Without(OpRXData)
	}
	n.awaiting = awaitNone
}

// onFirstBeacon acquires synchronisation from the first beacon heard
// while scanning: adopts its sender's hop+1, aligns the slot counter,
// and schedules the recurring wake-up to fall one slot after the
// beacon's airtime, less the beacon's own airtime so the next wake-up
// lands right as the following beacon would begin.
func (n *Node) onFirstBeacon(b frame.Beacon, rxTime timing.Ticks) {
	n.scanning = false
	n.missedBeacons = 0
	n.hop = b.Header.Hop + 1
	n.hopUpdated = true
	n.slot = int(b.Header.Hop)

	var deadline = rxTime.Add(n.slotTicks()).Sub(timing.AirtimeBeaconTicks())
	n.sched.SetTimedCallback(n.wakeupJob, deadline, n.onWakeup)

	n.opmode = n.opmode.Without(OpScan).With(OpTrack)
	n.rebroadcastBeacon(b)
	n.awaiting = awaitNone
	n.emit(EventSync)
}

// missedBeacon counts one missed beacon slot and, once MaxMissedBeacons
// is exceeded, drops synchronisation and restarts scanning.
func (n *Node) missedBeacon() {
	n.missedBeacons++
	if n.missedBeacons <= n.cfg.MaxMissedBeacons {
		return
	}
	n.opmode = n.opmode.Without(OpTrack)
	n.sched.Clear(n.wakeupJob)
	n.hop = unsyncedHop
	n.missedBeacons = 0
	n.emit(EventLostSync)
	n.beginScan()
}

// processTrackBeacon applies a beacon to a TRACK-mode node's hop and
// drift state: the shared logic between a beacon received in its own
// slot (onBeaconRXDone) and one received out of its slot, e.g. a beacon
// arriving during a data slot (onDataRXDone's reprocessing branch).
func (n *Node) processTrackBeacon(b frame.Beacon, rxTime timing.Ticks) {
	if !n.hopUpdated {
		n.hop = b.Header.Hop + 1
		n.hopUpdated = true
	}
	if int(b.Header.Hop) != n.slot {
		n.slot = int(b.Header.Hop)
	}

	var expected = rxTime.Add(n.slotTicks()).Sub(timing.AirtimeBeaconTicks())
	if deadline, ok := n.sched.Deadline(n.wakeupJob); ok {
		if deadline.Sub(expected).Abs() > timing.MillisToTicks(n.cfg.MaxDriftMillis) {
			n.sched.SetTimedCallback(n.wakeupJob, expected, n.onWakeup)
		}
	}

	n.missedBeacons = 0
	n.rebroadcastBeacon(b)
}
