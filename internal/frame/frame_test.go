package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mbor/blink/internal/frame"
)

func TestBeaconRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var b = frame.Beacon{
			Header: frame.Header{
				Type: frame.TypeBeacon,
				Hop:  uint8(rapid.IntRange(0, 15).Draw(t, "hop")),
				Dest: uint8(rapid.IntRange(0, 255).Draw(t, "dest")),
			},
			Footer: frame.Footer{Trace: uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "trace"))},
		}
		var buf = frame.EncodeBeacon(b)
		var got, err = frame.DecodeBeacon(buf[:])
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})
}

// testMaxPayloadLen stands in for a deployment's configured
// MAX_PAYLOAD_LEN: the fixed wire-payload width every data frame in
// these tests is encoded and decoded at, regardless of how many bytes
// an individual submission actually used.
const testMaxPayloadLen = 6

func TestDataRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var payload = rapid.SliceOfN(rapid.Byte(), 0, testMaxPayloadLen).Draw(t, "payload")
		var d = frame.Data{
			Header: frame.Header{
				Type: frame.TypeData,
				Hop:  uint8(rapid.IntRange(0, 15).Draw(t, "hop")),
				Dest: uint8(rapid.IntRange(0, 255).Draw(t, "dest")),
			},
			Payload: payload,
			Footer:  frame.Footer{Trace: uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "trace"))},
		}
		var buf = make([]byte, frame.DataSize(testMaxPayloadLen))
		var n = frame.EncodeData(d, testMaxPayloadLen, buf)
		require.Equal(t, len(buf), n)

		var got, err = frame.DecodeData(buf, testMaxPayloadLen)
		require.NoError(t, err)
		assert.Equal(t, d.Header, got.Header)
		assert.Equal(t, d.Footer, got.Footer)

		var want = make([]byte, testMaxPayloadLen)
		copy(want, payload)
		assert.Equal(t, want, got.Payload, "payload shorter than the configured length is zero-padded on air")
	})
}

func TestDecodeRejectsWrongType(t *testing.T) {
	var buf = [frame.BeaconSize]byte{byte(frame.TypeData) << 4, 0, 0, 0}
	var _, err = frame.DecodeBeacon(buf[:])
	require.Error(t, err)

	var dbuf = [frame.HeaderSize + frame.FooterSize]byte{byte(frame.TypeBeacon) << 4, 0, 0, 0}
	_, err = frame.DecodeData(dbuf[:], 0)
	require.Error(t, err)
}

// A data frame must match the configured payload length exactly: a
// buffer that decodes fine at one length is rejected at another.
func TestDecodeDataRejectsWrongLength(t *testing.T) {
	var d = frame.Data{
		Header: frame.Header{Type: frame.TypeData, Hop: 1, Dest: 9},
		Payload: []byte{0xAA, 0xBB, 0xCC},
	}
	var buf = make([]byte, frame.DataSize(testMaxPayloadLen))
	var n = frame.EncodeData(d, testMaxPayloadLen, buf)
	require.Equal(t, len(buf), n)

	var _, err = frame.DecodeData(buf, testMaxPayloadLen+1)
	require.Error(t, err)

	_, err = frame.DecodeData(buf[:len(buf)-1], testMaxPayloadLen)
	require.Error(t, err)
}

// Trace fragments round-trip independently: writing fragment k never
// disturbs any other position.
func TestTraceFragmentsAreIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var f frame.Footer
		var want [frame.TraceMax]uint8

		for k := 0; k < frame.TraceMax; k++ {
			var id = uint8(rapid.IntRange(0, 7).Draw(t, "id"))
			f = f.WithTraceFragment(k, id)
			want[k] = id & frame.TraceMask
		}
		for k := 0; k < frame.TraceMax; k++ {
			assert.Equal(t, want[k], f.TraceFragment(k))
		}
	})
}
