package usb

import "errors"

// ANT serial framing: sync byte, payload length, message ID, payload,
// XOR checksum over everything before it.
const frameSync = 0xA4

// Message IDs this node sends or handles.
const (
	msgUnassignChannel     = 0x41
	msgAssignChannel       = 0x42
	msgChannelPeriod       = 0x43
	msgSearchTimeout       = 0x44
	msgChannelFrequency    = 0x45
	msgSystemReset         = 0x4A
	msgOpenChannel         = 0x4B
	msgCloseChannel        = 0x4C
	msgRequestMessage      = 0x4D
	msgBroadcastData       = 0x4E
	msgChannelResponse     = 0x40
	msgChannelID           = 0x51
	msgStartupNotification = 0x6F
)

// Channel event codes (channel response with message ID 1).
const (
	eventRxSearchTimeout = 0x01
	eventChannelClosed   = 0x07
)

var errChecksum = errors.New("frame checksum mismatch")

// encodeFrame wraps a message in ANT serial framing.
func encodeFrame(id byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, frameSync, byte(len(payload)), id)
	frame = append(frame, payload...)

	var check byte
	for _, b := range frame {
		check ^= b
	}
	return append(frame, check)
}

// frame is one decoded serial message.
type frame struct {
	id      byte
	payload []byte
}

// Decoder states.
const (
	stateSync = iota
	stateLength
	stateID
	statePayload
	stateCheck
)

// frameDecoder reassembles frames from the serial byte stream one byte at
// a time. Bytes outside a frame are discarded until the next sync byte.
// Not safe for concurrent use — only the read loop feeds it.
type frameDecoder struct {
	state   int
	length  byte
	id      byte
	payload []byte
	check   byte
}

func (d *frameDecoder) reset() {
	d.state = stateSync
	d.payload = d.payload[:0]
}

// feed consumes one byte. It returns a completed frame when the byte
// finishes one, and errChecksum when a frame fails verification.
func (d *frameDecoder) feed(b byte) (*frame, error) {
	switch d.state {
	case stateSync:
		if b == frameSync {
			d.check = b
			d.state = stateLength
		}
	case stateLength:
		d.length = b
		d.check ^= b
		d.state = stateID
	case stateID:
		d.id = b
		d.check ^= b
		if d.length == 0 {
			d.state = stateCheck
		} else {
			d.state = statePayload
		}
	case statePayload:
		d.payload = append(d.payload, b)
		d.check ^= b
		if len(d.payload) == int(d.length) {
			d.state = stateCheck
		}
	case stateCheck:
		if b != d.check {
			d.reset()
			return nil, errChecksum
		}
		f := &frame{id: d.id, payload: append([]byte(nil), d.payload...)}
		d.reset()
		return f, nil
	}
	return nil, nil
}
