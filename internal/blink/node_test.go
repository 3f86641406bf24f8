package blink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbor/blink/internal/blink"
	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/sched"
	"github.com/mbor/blink/internal/timing"
)

// testRig bundles a single node with its own simulated radio, scheduler
// and clock for tests that don't need a multi-node network.
type testRig struct {
	cfg    blink.Config
	node   *blink.Node
	r      *radio.Simulated
	s      *sched.Scheduler
	clock  *sched.SimClock
	events []blink.Event
}

func newRig(t *testing.T, cfg blink.Config, id uint8) *testRig {
	t.Helper()
	var rig = &testRig{
		cfg:   cfg,
		r:     radio.NewSimulated(),
		clock: &sched.SimClock{},
	}
	rig.s = sched.New(rig.clock)
	rig.node = blink.New(cfg, id, rig.r, rig.s, rig.clock)
	rig.node.SetEventHandler(func(e blink.Event) { rig.events = append(rig.events, e) })
	require.NoError(t, rig.node.Reset())
	return rig
}

// completeOutstanding, if a radio command is outstanding, delivers st as
// its completion and runs any callbacks that unblocks.
func (rig *testRig) completeOutstanding(t *testing.T, st radio.Status) bool {
	t.Helper()
	if !rig.r.Busy() {
		return false
	}
	rig.r.Complete(st)
	rig.node.HandleCompletion(<-rig.r.Completions())
	rig.s.RunPending()
	return true
}

// advanceSlot moves the clock forward one slot, runs the resulting
// wake-up, and — if the wake-up left a radio command outstanding —
// completes it with st (an empty Status models "nothing heard before
// timeout").
func (rig *testRig) advanceSlot(t *testing.T, st radio.Status) {
	t.Helper()
	rig.clock.Advance(timing.MillisToTicks(rig.cfg.TimeSlotMillis))
	rig.s.RunPending()
	rig.completeOutstanding(t, st)
}

func smallConfig() blink.Config {
	var cfg = blink.DefaultConfig()
	cfg.TimeSlots = 10
	cfg.BeaconSlots = 2
	cfg.MaxPayloadLen = 6
	cfg.MaxMissedBeacons = 3
	return cfg
}

// Cold join: a node scanning for the network acquires sync from
// the first beacon it hears and reports SYNC.
func TestColdJoinAcquiresSync(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)
	rig.node.StartSync()
	rig.s.RunPending()

	require.True(t, rig.node.OpMode().Has(blink.OpScan))

	var beacon = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var buf = frame.EncodeBeacon(beacon)
	rig.completeOutstanding(t, radio.Status{Frame: buf[:], Length: len(buf), RxTime: rig.clock.Now()})

	assert.Equal(t, uint8(1), rig.node.Hop())
	assert.True(t, rig.node.OpMode().Has(blink.OpTrack))
	assert.False(t, rig.node.OpMode().Has(blink.OpScan))
	require.Len(t, rig.events, 1)
	assert.Equal(t, blink.EventSync, rig.events[0])
	assert.True(t, rig.node.PendingBeaconTX(), "should stage a rebroadcast of the acquiring beacon")
}

// A node that stops hearing beacons past MaxMissedBeacons drops
// synchronisation, reports LOST_SYNC, and resumes scanning.
func TestLossOfSyncRestartsScan(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)
	rig.node.StartSync()
	rig.s.RunPending()

	var beacon = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var buf = frame.EncodeBeacon(beacon)
	rig.completeOutstanding(t, radio.Status{Frame: buf[:], Length: len(buf), RxTime: rig.clock.Now()})
	require.True(t, rig.node.OpMode().Has(blink.OpTrack))

	var gotLostSync bool
	for i := 0; i < 50 && !gotLostSync; i++ {
		rig.advanceSlot(t, radio.Status{})
		if rig.node.OpMode().Has(blink.OpScan) {
			gotLostSync = true
		}
	}

	require.True(t, gotLostSync, "expected loss of sync within 50 slots")
	assert.False(t, rig.node.OpMode().Has(blink.OpTrack))
	assert.Contains(t, rig.events, blink.EventLostSync)
}

// An over-length submission is refused outright, not truncated, and
// leaves no pending transmission staged.
func TestOverLengthTXRejected(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)

	var oversized = make([]byte, cfg.MaxPayloadLen+1)
	assert.False(t, rig.node.TX(oversized))
	assert.False(t, rig.node.PendingDataTX())

	var fits = make([]byte, cfg.MaxPayloadLen)
	assert.True(t, rig.node.TX(fits))
	assert.True(t, rig.node.PendingDataTX())
}

// Root never adopts a hop or rebroadcasts from a beacon it hears — here
// one arriving in slot 2, a data slot under smallConfig, after an empty
// beacon-slot receive in slot 1: it defines hop 0 by construction.
func TestRootIgnoresHeardBeacons(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, blink.RootID)
	rig.node.StartSync()
	rig.s.RunPending()                         // slot 0: root transmits its own beacon
	rig.completeOutstanding(t, radio.Status{}) // completes the beacon TX

	rig.advanceSlot(t, radio.Status{}) // slot 1: root listens, hears nothing

	rig.clock.Advance(timing.MillisToTicks(cfg.TimeSlotMillis))
	rig.s.RunPending()
	var heard = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 3, Dest: blink.DestBroadcast}}
	var buf = frame.EncodeBeacon(heard)
	rig.completeOutstanding(t, radio.Status{Frame: buf[:], Length: len(buf), RxTime: rig.clock.Now()})

	assert.Equal(t, uint8(0), rig.node.Hop())
	assert.False(t, rig.node.PendingBeaconTX())
}

// A data frame from a node no closer to the root is absorbed, never
// forwarded — the closer-to-root forwarding filter.
func TestDataFromFartherNodeIsDropped(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)
	rig.node.StartSync()
	rig.s.RunPending()

	var beacon = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var buf = frame.EncodeBeacon(beacon)
	rig.completeOutstanding(t, radio.Status{Frame: buf[:], Length: len(buf), RxTime: rig.clock.Now()})
	require.Equal(t, uint8(1), rig.node.Hop())

	// slot 0 -> slot 1: still a beacon slot, transmits the rebroadcast staged above
	rig.advanceSlot(t, radio.Status{})
	require.Equal(t, 1, rig.node.Slot())

	// slot 1 -> slot 2: first data slot. Run the wake-up but withhold the
	// completion so the test can inject a specific frame below.
	rig.clock.Advance(timing.MillisToTicks(cfg.TimeSlotMillis))
	rig.s.RunPending()
	require.Equal(t, cfg.BeaconSlots, rig.node.Slot())

	// a peer at the same or greater hop distance submits a frame destined
	// elsewhere: frame.Header.Hop == our own hop, not greater, so it must
	// be dropped rather than forwarded.
	var d = frame.Data{Header: frame.Header{Type: frame.TypeData, Hop: rig.node.Hop(), Dest: 99}, Payload: []byte("hi")}
	var dbuf = make([]byte, frame.DataSize(cfg.MaxPayloadLen))
	frame.EncodeData(d, cfg.MaxPayloadLen, dbuf)
	rig.completeOutstanding(t, radio.Status{Frame: dbuf, Length: len(dbuf)})

	assert.False(t, rig.node.PendingForwardTX())
	assert.False(t, rig.node.PendingDataRX())
}
