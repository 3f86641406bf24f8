// Package blinktest provides a small deterministic, shared-clock test
// harness for driving one or more blink.Node values against Simulated
// radios without any wall-clock sleeping, used by internal/blink's
// multi-node tests.
package blinktest

import (
	"github.com/mbor/blink/internal/blink"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/sched"
	"github.com/mbor/blink/internal/timing"
)

// Handle bundles one simulated node with its own scheduler and radio and
// a log of every event it has emitted, in order.
type Handle struct {
	Node   *blink.Node
	Sched  *sched.Scheduler
	Radio  *radio.Simulated
	Events []blink.Event
}

// Network is a set of nodes sharing one SimClock, so advancing time
// advances every node's notion of "now" in lockstep — the test-only
// stand-in for every node hearing the same over-the-air clock.
type Network struct {
	Clock *sched.SimClock
	Nodes []*Handle
}

// NewNetwork builds a Network with one node per id in ids, each reset
// and ready for StartSync.
func NewNetwork(cfg blink.Config, ids []uint8) *Network {
	var net = &Network{Clock: &sched.SimClock{}}
	for _, id := range ids {
		var h = &Handle{
			Sched: sched.New(net.Clock),
			Radio: radio.NewSimulated(),
		}
		h.Node = blink.New(cfg, id, h.Radio, h.Sched, net.Clock)
		h.Node.SetEventHandler(func(e blink.Event) { h.Events = append(h.Events, e) })
		net.Nodes = append(net.Nodes, h)
	}
	return net
}

// ResetAll resets every node (blink_reset()).
func (net *Network) ResetAll() {
	for _, h := range net.Nodes {
		h.Node.Reset()
	}
}

// StartAll begins synchronisation on every node.
func (net *Network) StartAll() {
	for _, h := range net.Nodes {
		h.Node.StartSync()
	}
}

// RunPending drains every node's scheduler of currently-due callbacks,
// repeating until none of them have any left — a single logical instant
// may cascade (e.g. a wake-up staging a transmit the caller then
// completes, producing another due callback).
func (net *Network) RunPending() {
	for {
		var ran = 0
		for _, h := range net.Nodes {
			ran += h.Sched.RunPending()
		}
		if ran == 0 {
			return
		}
	}
}

// Advance moves the shared clock forward and runs every node's due
// callbacks.
func (net *Network) Advance(d timing.Ticks) {
	net.Clock.Advance(d)
	net.RunPending()
}

// Drain delivers every currently-buffered completion on every node's
// radio to that node's HandleCompletion, then runs any callbacks that
// unblocked as a result. Test code typically calls a Simulated.Complete*
// method directly on h.Radio and then Network.Drain to push the result
// through the protocol state machine.
func (net *Network) Drain() {
	for {
		var delivered = false
		for _, h := range net.Nodes {
			select {
			case st := <-h.Radio.Completions():
				h.Node.HandleCompletion(st)
				delivered = true
			default:
			}
		}
		net.RunPending()
		if !delivered {
			return
		}
	}
}
