package blink_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/mbor/blink/internal/blink"
)

var allOpModeFlags = []blink.OpMode{
	blink.OpReady, blink.OpScan, blink.OpTrack, blink.OpTXBcn,
	blink.OpTXData, blink.OpRXBcn, blink.OpRXData, blink.OpRoot, blink.OpNode,
}

func drawOpMode(t *rapid.T) blink.OpMode {
	var m blink.OpMode
	for _, flag := range allOpModeFlags {
		if rapid.Bool().Draw(t, "set") {
			m = m.With(flag)
		}
	}
	return m
}

// With sets a flag and leaves every other bit as it was.
func TestOpModeWithSetsOnlyTheGivenFlag(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m = drawOpMode(t)
		var i = rapid.IntRange(0, len(allOpModeFlags)-1).Draw(t, "i")
		var flag = allOpModeFlags[i]

		var got = m.With(flag)
		assert.True(t, got.Has(flag))
		for _, other := range allOpModeFlags {
			if other == flag {
				continue
			}
			assert.Equal(t, m.Has(other), got.Has(other))
		}
	})
}

// Without clears a flag and leaves every other bit as it was.
func TestOpModeWithoutClearsOnlyTheGivenFlag(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m = drawOpMode(t)
		var i = rapid.IntRange(0, len(allOpModeFlags)-1).Draw(t, "i")
		var flag = allOpModeFlags[i]

		var got = m.Without(flag)
		assert.False(t, got.Has(flag))
		for _, other := range allOpModeFlags {
			if other == flag {
				continue
			}
			assert.Equal(t, m.Has(other), got.Has(other))
		}
	})
}

// With followed by Without for the same flag is idempotent with plain
// Without, regardless of the flag's starting state.
func TestOpModeWithThenWithoutIsWithout(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m = drawOpMode(t)
		var i = rapid.IntRange(0, len(allOpModeFlags)-1).Draw(t, "i")
		var flag = allOpModeFlags[i]

		assert.Equal(t, m.Without(flag), m.With(flag).Without(flag))
	})
}

// String renders exactly one letter or placeholder dot per known flag,
// bracketed, in a fixed order — so log lines stay column-aligned across
// different opmodes.
func TestOpModeStringIsFixedWidth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var m = drawOpMode(t)
		var s = m.String()
		assert.True(t, strings.HasPrefix(s, "["))
		assert.True(t, strings.HasSuffix(s, "]"))
		assert.Len(t, s, len(allOpModeFlags)+2)
	})
}
