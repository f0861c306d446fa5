package hrm

import (
	"fmt"
	"time"

	"github.com/sweeney/hrm-bridge/internal/ant"
)

// ANT+ heart rate device profile channel parameters.
const (
	ChannelFrequency = 0x39 // 2457 MHz
	ChannelPeriod    = 8070 // ~4.06 broadcasts per second
	DeviceType       = 0x78
	SearchTimeout    = 30 * time.Second
)

// Config selects which monitor to receive from. The zero value pairs with
// the first heart rate monitor found.
type Config struct {
	DeviceNumber     uint16
	TransmissionType uint8
	Callbacks        Callbacks
}

// HeartRate is an open heart rate session over one ANT channel. Its
// embedded Monitor exposes the decoded values.
type HeartRate struct {
	*Monitor
	channel ant.Channel
}

// Open opens a channel on the node with the heart rate profile parameters
// and starts decoding broadcasts into the returned session.
func Open(node ant.Node, cfg Config) (*HeartRate, error) {
	m := NewMonitor(cfg.Callbacks)
	ch, err := node.OpenChannel(ant.Params{
		Frequency:        ChannelFrequency,
		Period:           ChannelPeriod,
		TransmissionType: cfg.TransmissionType,
		DeviceType:       DeviceType,
		DeviceNumber:     cfg.DeviceNumber,
		SearchTimeout:    SearchTimeout,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("open heart rate channel: %w", err)
	}
	return &HeartRate{Monitor: m, channel: ch}, nil
}

// ChannelState exposes the underlying channel's state unchanged. Decoded
// values should only be trusted once this reports ant.ChannelTracking.
func (h *HeartRate) ChannelState() ant.ChannelState {
	return h.channel.State()
}

// Close shuts down the underlying channel.
func (h *HeartRate) Close() error {
	return h.channel.Close()
}
