// Package frame implements the on-air beacon and data frame codec: octet
// exact, packed, little-endian, with strict length/type validation.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Type is the 4-bit frame type nibble.
type Type uint8

const (
	TypeBeacon Type = 0x0
	TypeData   Type = 0x1
)

const (
	HeaderSize = 2
	FooterSize = 2
	BeaconSize = HeaderSize + FooterSize

	// TraceShift is the width, in bits, of one node-id fragment packed
	// into the footer's trace field.
	TraceShift = 3
	TraceMask  = (1 << TraceShift) - 1
	// TraceMax is the number of fragments that fit in a 16-bit trace field.
	TraceMax = 16 / TraceShift
)

// DataSize returns the wire size of a data frame whose payload is
// payloadLen bytes — the configured MAX_PAYLOAD_LEN, the same for every
// frame on the network, never the length of an individual submission.
func DataSize(payloadLen int) int { return HeaderSize + payloadLen + FooterSize }

// Header is the 2-byte type/hop/dest header shared by beacon and data
// frames: the high nibble of the first byte is the type, the low nibble
// is hop, and the second byte is dest.
type Header struct {
	Type Type
	Hop  uint8 // 0..15: distance from root (beacon) or remaining budget (data)
	Dest uint8
}

func (h Header) encode(buf []byte) {
	buf[0] = byte(h.Type)<<4 | (h.Hop & 0x0F)
	buf[1] = h.Dest
}

func decodeHeader(buf []byte) Header {
	return Header{
		Type: Type(buf[0] >> 4),
		Hop:  buf[0] & 0x0F,
		Dest: buf[1],
	}
}

// Footer is the 2-byte little-endian trace field.
type Footer struct {
	Trace uint16
}

func (f Footer) encode(buf []byte) { binary.LittleEndian.PutUint16(buf, f.Trace) }

func decodeFooter(buf []byte) Footer {
	return Footer{Trace: binary.LittleEndian.Uint16(buf)}
}

// TraceFragment extracts the node-id fragment written at position k.
func (f Footer) TraceFragment(k int) uint8 {
	return uint8((f.Trace >> (TraceShift * k)) & TraceMask)
}

// WithTraceFragment returns the footer with id's low TraceShift bits
// written into position k, leaving other positions untouched.
func (f Footer) WithTraceFragment(k int, id uint8) Footer {
	var cleared = f.Trace &^ (TraceMask << (TraceShift * k))
	return Footer{Trace: cleared | (uint16(id&TraceMask) << (TraceShift * k))}
}

// Beacon is the 4-byte synchronisation frame.
type Beacon struct {
	Header Header
	Footer Footer
}

func EncodeBeacon(b Beacon) [BeaconSize]byte {
	var out [BeaconSize]byte
	b.Header.encode(out[0:HeaderSize])
	b.Footer.encode(out[HeaderSize:BeaconSize])
	return out
}

// ErrNotAFrame means the bytes are not a recognisable frame of the
// requested kind: wrong length, or a type nibble that doesn't match.
// Callers treat this as noise, not a fatal error — absorbed silently and
// the receive path resumed.
type ErrNotAFrame struct {
	Want Type
	Got  Type
	Len  int
}

func (e *ErrNotAFrame) Error() string {
	return fmt.Sprintf("frame: not a recognisable frame (len %d, type %#x, want %#x)", e.Len, e.Got, e.Want)
}

func DecodeBeacon(buf []byte) (Beacon, error) {
	if len(buf) != BeaconSize {
		return Beacon{}, &ErrNotAFrame{Want: TypeBeacon, Len: len(buf)}
	}
	var h = decodeHeader(buf[0:HeaderSize])
	if h.Type != TypeBeacon {
		return Beacon{}, &ErrNotAFrame{Want: TypeBeacon, Got: h.Type, Len: len(buf)}
	}
	return Beacon{Header: h, Footer: decodeFooter(buf[HeaderSize:BeaconSize])}, nil
}

// Data is the header ∥ payload ∥ footer data frame. Payload is a slice
// into caller-owned storage; callers must copy if they need it to
// outlive the buffer it was decoded from.
type Data struct {
	Header  Header
	Payload []byte
	Footer  Footer
}

// EncodeData writes d at the fixed wire size DataSize(payloadLen): a
// payload shorter than payloadLen is zero-padded, since every data frame
// on the network carries the same configured payload length regardless
// of how much of it an individual submission actually used.
func EncodeData(d Data, payloadLen int, out []byte) int {
	if len(d.Payload) > payloadLen {
		return 0
	}
	var n = DataSize(payloadLen)
	if len(out) < n {
		return 0
	}
	d.Header.encode(out[0:HeaderSize])
	var copied = copy(out[HeaderSize:HeaderSize+payloadLen], d.Payload)
	for i := HeaderSize + copied; i < HeaderSize+payloadLen; i++ {
		out[i] = 0
	}
	d.Footer.encode(out[HeaderSize+payloadLen : n])
	return n
}

// DecodeData accepts only a buffer of exactly DataSize(payloadLen): the
// frame's wire size is fixed by configuration, not inferred from
// whatever length happened to arrive.
func DecodeData(buf []byte, payloadLen int) (Data, error) {
	if len(buf) != DataSize(payloadLen) {
		return Data{}, &ErrNotAFrame{Want: TypeData, Len: len(buf)}
	}
	var h = decodeHeader(buf[0:HeaderSize])
	if h.Type != TypeData {
		return Data{}, &ErrNotAFrame{Want: TypeData, Got: h.Type, Len: len(buf)}
	}
	return Data{
		Header:  h,
		Payload: buf[HeaderSize : HeaderSize+payloadLen],
		Footer:  decodeFooter(buf[HeaderSize+payloadLen:]),
	}, nil
}
