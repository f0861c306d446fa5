// Package hrm decodes ANT+ heart rate monitor broadcasts into a computed
// heart rate, a running beat count, and an R-R interval.
// The decode core has NO external dependencies (no radio, MQTT, or OS
// access); raw payloads are pushed in by the channel layer and results are
// polled by application code.
package hrm

// State is the derived view of the most recent valid broadcast.
type State struct {
	// Computed heart rate in beats per minute, straight from the sensor.
	ComputedHeartRate uint8
	// False until the first valid broadcast has been decoded.
	HeartRateValid bool
	// Cumulative beats seen this session. The wire counter is 8 bits;
	// this unwraps it. Never decreases.
	BeatCount uint32
	// Last raw 8-bit counter value, kept for unwrap arithmetic.
	PrevBeatCount uint8
	// Last raw event time (1/1024 s units, rolls over every ~64 s).
	PrevEventTime uint16
	// Milliseconds between the two most recent beats. Zero whenever the
	// last broadcast did not represent exactly one new beat.
	RRIntervalMs int
}

// Device identifies a broadcasting monitor on the ANT network.
type Device struct {
	Number           uint16
	TransmissionType uint8
}

// Callbacks are the consumer's event hooks. Either field may be nil, in
// which case the corresponding event is dropped.
type Callbacks struct {
	// DeviceFound fires once the search (wildcard or specific) locks on
	// to a monitor. Pass the reported identity back in Config to
	// reconnect to the same monitor later.
	DeviceFound func(deviceNumber uint16, transmissionType uint8)

	// HeartRateData fires after every decoded broadcast.
	HeartRateData func(computedHeartRate uint8, beatCount uint32, rrIntervalMs int)
}
