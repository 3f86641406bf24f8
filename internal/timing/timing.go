// Package timing converts between the monotonic tick unit the protocol is
// specified in and wall-clock durations, and computes on-air time for
// frames at a given chirp-spread-spectrum modulation.
//
// The platform's monotonic clock and millisecond/microsecond conversion
// is a separate collaborator (internal/sched.Clock); this package only
// needs a tick unit to do arithmetic in, so it defines Ticks as a thin
// wrapper around time.Duration rather than inventing a separate
// fixed-point unit.
package timing

import "time"

// Ticks is the protocol's monotonic time unit. One Ticks is one nanosecond
// of wall-clock time; the wrapper exists so slot/airtime arithmetic reads
// as protocol time rather than an arbitrary duration.
type Ticks time.Duration

func MillisToTicks(ms int) Ticks { return Ticks(time.Duration(ms) * time.Millisecond) }
func MicrosToTicks(us int) Ticks { return Ticks(time.Duration(us) * time.Microsecond) }

func (t Ticks) Duration() time.Duration { return time.Duration(t) }
func (t Ticks) Add(d Ticks) Ticks       { return t + d }
func (t Ticks) Sub(o Ticks) Ticks       { return t - o }

func (t Ticks) Abs() Ticks {
	if t < 0 {
		return -t
	}
	return t
}

// SpreadingFactor, Bandwidth and CodingRate cover the modulation space a
// CSS radio's parameter set can express: FSK plus SF7..SF12, BW125/250/
// 500, and coding rates 4/5..4/8.
type SpreadingFactor uint8

const (
	FSK SpreadingFactor = iota
	SF7
	SF8
	SF9
	SF10
	SF11
	SF12
	SFReserved
)

type Bandwidth uint8

const (
	BW125 Bandwidth = iota
	BW250
	BW500
	BWReserved
)

type CodingRate uint8

const (
	CR4_5 CodingRate = iota
	CR4_6
	CR4_7
	CR4_8
)

// ParamSet packs spreading factor, bandwidth, coding rate, implicit-header
// and no-CRC flags into one 16-bit value, the same bit layout as the
// original's rps_t / MAKERPS so the wire-level meaning of "modulation"
// never needs to leave this representation.
type ParamSet uint16

func MakeParamSet(sf SpreadingFactor, bw Bandwidth, cr CodingRate, implicitHeader, noCRC bool) ParamSet {
	var p = ParamSet(sf) | ParamSet(bw)<<3 | ParamSet(cr)<<5
	if noCRC {
		p |= 1 << 7
	}
	if implicitHeader {
		p |= 1 << 8
	}
	return p
}

func (p ParamSet) SF() SpreadingFactor { return SpreadingFactor(p & 0x7) }
func (p ParamSet) BW() Bandwidth       { return Bandwidth((p >> 3) & 0x3) }
func (p ParamSet) CR() CodingRate      { return CodingRate((p >> 5) & 0x3) }
func (p ParamSet) NoCRC() bool         { return (p>>7)&0x1 == 1 }
func (p ParamSet) ImplicitHeader() bool {
	return (p>>8)&0xFF != 0
}

// SameSFBW reports whether two parameter sets would interfere on air
// (matching spreading factor and bandwidth).
func SameSFBW(a, b ParamSet) bool { return (a^b)&0x1F == 0 }

// DefaultParamSet is SF12/BW125/CR4-5, explicit header, CRC enabled —
// the long-range, low-bitrate default for a multi-hop collection network.
var DefaultParamSet = MakeParamSet(SF12, BW125, CR4_5, false, false)

const (
	DefaultFrequencyHz = 868_000_000
	DefaultTXPowerDBm  = 17
)

// symbolMicros[sf][bw] is the precomputed per-symbol time in microseconds
// for each spreading-factor/bandwidth combination.
var symbolMicros = [7][3]int{
	FSK:  {0, 0, 0},
	SF7:  {1024, 512, 256},
	SF8:  {2048, 1024, 512},
	SF9:  {4096, 2048, 1024},
	SF10: {8192, 4096, 2048},
	SF11: {16384, 8192, 4096},
	SF12: {32768, 16384, 8192},
}

// SymbolTicks returns the duration of one modulation symbol.
func SymbolTicks(sf SpreadingFactor, bw Bandwidth) Ticks {
	if int(sf) >= len(symbolMicros) || int(bw) >= 3 {
		return 0
	}
	return MicrosToTicks(symbolMicros[sf][bw])
}

const preambleSymbols = 8 // standard CSS preamble length in symbols

// AirtimeTicks estimates on-air time for a frame of payloadLen bytes at
// the given parameter set: preamble symbols plus one symbol per payload
// byte. Computing this per frame length, rather than hard-coding a single
// beacon-sized constant, lets CAD/receive timeouts be sized correctly for
// data frames too.
func AirtimeTicks(p ParamSet, payloadLen int) Ticks {
	var symTime = SymbolTicks(p.SF(), p.BW())
	if symTime == 0 {
		return 0
	}
	return symTime * Ticks(preambleSymbols+payloadLen)
}

// AirtimeBeaconTicks is the precomputed airtime for a 4-byte beacon frame
// at the default modulation: 827392us, measured for SF12/BW125/CR4-5 with
// explicit header and CRC.
func AirtimeBeaconTicks() Ticks { return MicrosToTicks(827_392) }

// RxSymbolTimeout derives a single-shot receive timeout, in symbols, from
// the frame size rather than a single hard-coded symbol count: the
// preamble, one symbol per byte of a frameLen-byte frame, and a margin of
// four symbols. p is not consulted, so the count is the same at every
// modulation.
func RxSymbolTimeout(p ParamSet, frameLen int) int {
	return preambleSymbols + frameLen + 4
}
