// Package ant defines the boundary to the ANT channel layer.
// The real implementation drives a USB stick over a serial port (see the
// usb subpackage). The fake implementation allows testing without radio
// hardware.
package ant

import "time"

// ChannelState tracks a channel through its lifetime. Broadcast data is
// only trustworthy once the channel is Tracking.
type ChannelState int

const (
	ChannelAssigned ChannelState = iota
	ChannelSearching
	ChannelTracking
	ChannelClosed
)

// String returns the state name used in logs and status output.
func (s ChannelState) String() string {
	switch s {
	case ChannelAssigned:
		return "ASSIGNED"
	case ChannelSearching:
		return "SEARCHING"
	case ChannelTracking:
		return "TRACKING"
	case ChannelClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Params configures a receiving channel. The values are passed through to
// the radio as-is; device profiles own their meaning.
type Params struct {
	Frequency        uint8  // RF channel, offset from 2400 MHz
	Period           uint16 // channel period in 1/32768 s units
	TransmissionType uint8
	DeviceType       uint8
	DeviceNumber     uint16 // 0 = wildcard, pair with the first match
	SearchTimeout    time.Duration
}

// Handler receives channel events. OnBroadcast data starts with the
// channel number byte followed by the 8-byte data page, exactly as the
// radio delivers it.
type Handler interface {
	OnBroadcast(data []byte)
	OnDeviceFound(deviceNumber uint16, transmissionType uint8)
}

// Channel is one open receiving channel.
type Channel interface {
	// State returns the channel's current state.
	State() ChannelState

	// Close shuts the channel down and releases its slot on the radio.
	Close() error
}

// Node is an attached ANT radio.
type Node interface {
	// OpenChannel assigns, configures, and opens a channel. Events are
	// delivered to the handler from the node's dispatch goroutine.
	OpenChannel(params Params, handler Handler) (Channel, error)

	// Close resets the radio and releases the transport.
	Close() error
}
