package hrm

import "encoding/binary"

// Broadcast payload layout. The channel layer prepends the channel number
// byte to the 8-byte data page, so all offsets are shifted by one.
const (
	payloadSize     = 9
	eventTimeOffset = 5 // uint16, little-endian, 1/1024 s units
	beatCountOffset = 7
	heartRateOffset = 8
)

// Decode maps one raw broadcast payload plus the prior state to the next
// state. It reports false for payloads that are not exactly 9 bytes; those
// carry no usable page and must not advance the state.
func Decode(raw []byte, prior State) (State, bool) {
	if len(raw) != payloadSize {
		return State{}, false
	}

	count := raw[beatCountOffset]

	// The wire counter is 8 bits and wraps at 256. More than one wrap
	// between consecutive broadcasts is undetectable; the sensor's
	// broadcast rate makes that gap unreachable in practice.
	var difference uint32
	if prior.PrevBeatCount > count {
		difference = uint32(count) + 256 - uint32(prior.PrevBeatCount)
	} else {
		difference = uint32(count) - uint32(prior.PrevBeatCount)
	}

	eventTime := binary.LittleEndian.Uint16(raw[eventTimeOffset : eventTimeOffset+2])

	// An R-R interval is only meaningful when exactly one beat occurred
	// since the previous sample. The 16-bit event time rolls over every
	// ~64 s; unsigned subtraction is all the handling it gets.
	rr := 0
	if difference == 1 {
		delta := eventTime - prior.PrevEventTime
		rr = int(delta) * 1000 / 1024
	}

	return State{
		ComputedHeartRate: raw[heartRateOffset],
		HeartRateValid:    true,
		BeatCount:         prior.BeatCount + difference,
		PrevBeatCount:     count,
		PrevEventTime:     eventTime,
		RRIntervalMs:      rr,
	}, true
}
