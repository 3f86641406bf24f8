package blink

import (
	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/timing"
)

// stageRootBeacon prepares the root's own epoch-opening beacon: hop 0,
// broadcast destination, no trace fragments yet.
func (n *Node) stageRootBeacon() {
	n.beaconTX = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: DestBroadcast}}
	n.pendingBeaconTX = true
}

// rebroadcastBeacon stages a received beacon for one more hop of
// propagation, provided it hasn't already reached MaxBeaconHops.
func (n *Node) rebroadcastBeacon(b frame.Beacon) {
	if b.Header.Hop >= n.cfg.MaxBeaconHops {
		return
	}
	n.beaconTX = frame.Beacon{
		Header: frame.Header{Type: frame.TypeBeacon, Hop: b.Header.Hop + 1, Dest: DestBroadcast},
		Footer: b.Footer,
	}
	n.pendingBeaconTX = true
}

func (n *Node) issueBeaconTX() {
	var buf = frame.EncodeBeacon(n.beaconTX)
	n.opmode = n.opmode.With(OpTXBcn)
	n.awaiting = awaitBeaconTX
	n.radio.Transmit(buf[:])
}

func (n *Node) issueBeaconRX() {
	n.opmode = n.opmode.With(OpRXBcn)
	if n.cfg.UseCAD {
		n.awaiting = awaitCAD
		n.radio.CAD()
		return
	}
	n.awaiting = awaitBeaconRX
	n.radio.ReceiveTimed(timing.RxSymbolTimeout(n.cfg.ParamSet, frame.BeaconSize))
}

// onBeaconRXDone handles the completion of a beacon-slot receive. A
// root's own beacon slots are only ever listened to out of symmetry with
// relays; a root never adopts a hop or rebroadcasts from what it hears,
// since it defines hop 0 by construction.
func (n *Node) onBeaconRXDone(st radio.Status) {
	n.opmode = n.opmode.Without(OpRXBcn)
	n.awaiting = awaitNone

	if n.opmode.Has(OpRoot) {
		return // root defines hop 0; nothing it hears changes its own state
	}

	if st.Length == 0 || st.CRCError {
		n.missedBeacon()
		return
	}

	var b, err = frame.DecodeBeacon(st.Frame[:st.Length])
	if err != nil {
		n.missedBeacon()
		return
	}

	n.processTrackBeacon(b, st.RxTime)
}
