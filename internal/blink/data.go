package blink

import (
	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/timing"
)

func (n *Node) issueDataTX() {
	if n.pendingForwardTX {
		n.txIsOwn = false
	} else {
		n.txIsOwn = true
	}

	var d frame.Data
	if n.txIsOwn {
		d = n.dataTX
	} else {
		d = n.forwardTX
	}

	var buf = make([]byte, frame.DataSize(n.cfg.MaxPayloadLen))
	frame.EncodeData(d, n.cfg.MaxPayloadLen, buf)

	n.opmode = n.opmode.With(OpTXData)
	n.awaiting = awaitDataTX
	n.radio.Transmit(buf)
}

func (n *Node) issueDataRX() {
	n.opmode = n.opmode.With(OpRXData)
	if n.cfg.UseCAD {
		n.awaiting = awaitCAD
		n.radio.CAD()
		return
	}
	n.awaiting = awaitDataRX
	n.radio.ReceiveTimed(timing.RxSymbolTimeout(n.cfg.ParamSet, frame.DataSize(n.cfg.MaxPayloadLen)))
}

// onTXDone clears the transmitting opmode flag and reports TXCOMPLETE —
// but only for the node's own originated traffic. Relayed traffic
// completing transmission is not the application's concern and generates
// no event; own and forwarded transmissions are tracked through separate
// pending flags specifically so forwarding on another node's behalf never
// surfaces as a spurious acknowledgment of the node's own submission.
func (n *Node) onTXDone(st radio.Status, isBeacon bool) {
	n.awaiting = awaitNone
	if isBeacon {
		n.opmode = n.opmode.Without(OpTXBcn)
		n.pendingBeaconTX = false
		return
	}

	n.opmode = n.opmode.Without(OpTXData)
	if n.txIsOwn {
		n.pendingDataTX = false
		n.emit(EventTXComplete)
	} else {
		n.pendingForwardTX = false
	}
}

// onDataRXDone handles a data-slot receive completion: frames addressed
// to this node are delivered upward, frames with remaining hop budget
// beyond this node's own distance are queued for one more forward hop
// (stamping the trace fragment at the decremented hop position), a
// beacon arriving in a data slot is handed to processTrackBeacon on a
// non-root node, and everything else — including frames from nodes no
// closer to the root than this one — is silently absorbed (the
// closer-to-root forwarding filter).
func (n *Node) onDataRXDone(st radio.Status) {
	n.opmode = n.opmode.Without(OpRXData)
	n.awaiting = awaitNone

	if st.Length == 0 || st.CRCError {
		return
	}

	var d, err = frame.DecodeData(st.Frame[:st.Length], n.cfg.MaxPayloadLen)
	if err != nil {
		if b, berr := frame.DecodeBeacon(st.Frame[:st.Length]); berr == nil && !n.opmode.Has(OpRoot) {
			n.processTrackBeacon(b, st.RxTime)
		}
		return
	}

	switch {
	case d.Header.Dest == n.id:
		n.dataRXBuf = append(n.dataRXBuf[:0], d.Payload...)
		n.pendingDataRX = true
		n.emit(EventRXComplete)

	case d.Header.Hop > n.cfg.MaxDataHops:
		// malformed or runaway hop value beyond the configured ceiling,
		// on a frame not addressed to us: drop rather than forward.

	case d.Header.Hop > n.hop && !n.pendingForwardTX:
		var newHop = d.Header.Hop - 1
		var footer = d.Footer
		if int(newHop) < frame.TraceMax {
			footer = footer.WithTraceFragment(int(newHop), n.id)
		}
		n.forwardTX = frame.Data{
			Header:  frame.Header{Type: frame.TypeData, Hop: newHop, Dest: d.Header.Dest},
			Payload: append([]byte(nil), d.Payload...),
			Footer:  footer,
		}
		n.pendingForwardTX = true

	default:
		// not ours, and either no closer to root than we are, or the
		// forward queue is already occupied: drop.
	}
}
