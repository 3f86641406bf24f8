package blink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbor/blink/internal/blink"
	"github.com/mbor/blink/internal/frame"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/timing"
)

// driveToOwnDataSlot syncs rig to a beacon at the current clock, then
// advances it through the beacon-rebroadcast slot into its first data
// slot, leaving a receive outstanding there without completing it — the
// same staging TestDataFromFartherNodeIsDropped uses, reused here so a
// beacon-shaped frame can be injected where a data frame is normally
// expected (onDataRXDone's DecodeBeacon fallback).
func driveToOwnDataSlot(t *testing.T, rig *testRig) {
	t.Helper()
	rig.node.StartSync()
	rig.s.RunPending()

	var beacon = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var buf = frame.EncodeBeacon(beacon)
	rig.completeOutstanding(t, radio.Status{Frame: buf[:], Length: len(buf), RxTime: rig.clock.Now()})
	require.True(t, rig.node.OpMode().Has(blink.OpTrack))

	rig.advanceSlot(t, radio.Status{}) // beacon slot 1: transmits the staged rebroadcast

	rig.clock.Advance(timing.MillisToTicks(rig.cfg.TimeSlotMillis))
	rig.s.RunPending() // first data slot: receive left outstanding
	require.Equal(t, rig.cfg.BeaconSlots, rig.node.Slot())
}

// A beacon arriving in a data slot — the only way a synced node in this
// configuration hears a second beacon mid-epoch — still updates drift
// state via the same processTrackBeacon path a beacon heard in its own
// slot would use. One reported far enough off the predicted deadline
// pulls the wake-up schedule back into line.
func TestDriftBeyondThresholdResyncsWakeup(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)
	driveToOwnDataSlot(t, rig)

	var before, beforeOK = rig.node.NextWakeupDeadline()
	require.True(t, beforeOK)

	// Report the beacon arriving cfg.MaxDriftMillis*2 later, relative to
	// the slot boundary, than the schedule predicts — well beyond the
	// drift threshold.
	var late = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var lateBuf = frame.EncodeBeacon(late)
	var lateRx = rig.clock.Now().Add(timing.AirtimeBeaconTicks()).Add(timing.MillisToTicks(cfg.MaxDriftMillis * 2))
	rig.completeOutstanding(t, radio.Status{Frame: lateBuf[:], Length: len(lateBuf), RxTime: lateRx})

	var expected = lateRx.Add(timing.MillisToTicks(cfg.TimeSlotMillis)).Sub(timing.AirtimeBeaconTicks())
	var got, gotOK = rig.node.NextWakeupDeadline()
	require.True(t, gotOK)
	assert.NotEqual(t, before, got, "wake-up should have been rescheduled")
	assert.Equal(t, expected, got, "wake-up should track the drifted beacon's predicted slot boundary")
}

// A beacon arriving close enough to the predicted deadline leaves the
// wake-up schedule alone rather than churning it every slot.
func TestDriftWithinThresholdLeavesWakeupAlone(t *testing.T) {
	var cfg = smallConfig()
	var rig = newRig(t, cfg, 7)
	driveToOwnDataSlot(t, rig)

	var before, beforeOK = rig.node.NextWakeupDeadline()
	require.True(t, beforeOK)

	// Report the beacon arriving only cfg.MaxDriftMillis/4 later than
	// the slot boundary the schedule predicts — comfortably inside the
	// drift threshold.
	var onTime = frame.Beacon{Header: frame.Header{Type: frame.TypeBeacon, Hop: 0, Dest: blink.DestBroadcast}}
	var onTimeBuf = frame.EncodeBeacon(onTime)
	var onTimeRx = rig.clock.Now().Add(timing.AirtimeBeaconTicks()).Add(timing.MillisToTicks(cfg.MaxDriftMillis / 4))
	rig.completeOutstanding(t, radio.Status{Frame: onTimeBuf[:], Length: len(onTimeBuf), RxTime: onTimeRx})

	var after, afterOK = rig.node.NextWakeupDeadline()
	require.True(t, afterOK)
	assert.Equal(t, before, after, "on-time beacon should not perturb the wake-up schedule")
}
