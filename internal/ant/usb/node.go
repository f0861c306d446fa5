// Package usb implements ant.Node over an ANT USB stick's serial
// interface (a CDC/ACM or FTDI device such as /dev/ttyUSB0).
package usb

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/sweeney/hrm-bridge/internal/ant"
)

// Node drives a single ANT USB stick. The daemon only opens one channel,
// but dispatch is keyed by channel number so more would work.
type Node struct {
	port serial.Port
	done chan struct{}

	mu       sync.Mutex
	channels map[uint8]*channel
	next     uint8
}

// Open opens the serial device, resets the stick, and starts the read
// loop.
func Open(device string) (*Node, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	n := &Node{
		port:     port,
		done:     make(chan struct{}),
		channels: make(map[uint8]*channel),
	}

	if err := n.write(msgSystemReset, []byte{0}); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset stick: %w", err)
	}
	// The stick needs a moment after reset before it accepts commands.
	// Its startup notification is consumed by the read loop.
	time.Sleep(500 * time.Millisecond)

	go n.readLoop()
	return n, nil
}

// OpenChannel assigns and opens a receiving channel with the given params.
func (n *Node) OpenChannel(params ant.Params, handler ant.Handler) (ant.Channel, error) {
	n.mu.Lock()
	num := n.next
	n.next++
	ch := &channel{
		node:     n,
		number:   num,
		handler:  handler,
		wildcard: params.DeviceNumber == 0,
		state:    ant.ChannelAssigned,
	}
	n.channels[num] = ch
	n.mu.Unlock()

	// Search timeout is configured in 2.5 s units, rounded up.
	timeout := byte((params.SearchTimeout + 2500*time.Millisecond - 1) / (2500 * time.Millisecond))

	steps := []struct {
		name    string
		id      byte
		payload []byte
	}{
		// 0x00 = bidirectional slave, network 0
		{"assign", msgAssignChannel, []byte{num, 0x00, 0x00}},
		{"set id", msgChannelID, []byte{num,
			byte(params.DeviceNumber), byte(params.DeviceNumber >> 8),
			params.DeviceType, params.TransmissionType}},
		{"set period", msgChannelPeriod, []byte{num,
			byte(params.Period), byte(params.Period >> 8)}},
		{"set timeout", msgSearchTimeout, []byte{num, timeout}},
		{"set frequency", msgChannelFrequency, []byte{num, params.Frequency}},
		{"open", msgOpenChannel, []byte{num}},
	}
	for _, s := range steps {
		if err := n.write(s.id, s.payload); err != nil {
			n.mu.Lock()
			delete(n.channels, num)
			n.mu.Unlock()
			return nil, fmt.Errorf("channel %d %s: %w", num, s.name, err)
		}
	}

	ch.setState(ant.ChannelSearching)
	return ch, nil
}

// Close resets the stick and releases the serial port. Channels are
// implicitly closed by the reset.
func (n *Node) Close() error {
	close(n.done)
	if err := n.write(msgSystemReset, []byte{0}); err != nil {
		n.port.Close()
		return fmt.Errorf("reset stick: %w", err)
	}
	return n.port.Close()
}

func (n *Node) write(id byte, payload []byte) error {
	_, err := n.port.Write(encodeFrame(id, payload))
	return err
}

func (n *Node) channel(num uint8) *channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channels[num]
}

func (n *Node) readLoop() {
	var dec frameDecoder
	buf := make([]byte, 64)
	for {
		select {
		case <-n.done:
			return
		default:
		}

		cnt, err := n.port.Read(buf)
		if err != nil {
			// Read timeouts are routine; they give the select above a
			// chance to notice shutdown.
			continue
		}
		for _, b := range buf[:cnt] {
			f, err := dec.feed(b)
			if err != nil {
				log.Printf("ant: %v", err)
				continue
			}
			if f != nil {
				n.dispatch(f)
			}
		}
	}
}

func (n *Node) dispatch(f *frame) {
	switch f.id {
	case msgBroadcastData:
		if len(f.payload) == 0 {
			return
		}
		if ch := n.channel(f.payload[0]); ch != nil {
			ch.onBroadcast(f.payload)
		}
	case msgChannelID:
		// Response to the channel ID request issued after a wildcard
		// search locks on.
		if len(f.payload) < 5 {
			return
		}
		if ch := n.channel(f.payload[0]); ch != nil {
			number := uint16(f.payload[1]) | uint16(f.payload[2])<<8
			ch.onDeviceFound(number, f.payload[4])
		}
	case msgChannelResponse:
		// payload: channel, responded-to message ID, code
		if len(f.payload) < 3 {
			return
		}
		if ch := n.channel(f.payload[0]); ch != nil {
			ch.onEvent(f.payload[1], f.payload[2])
		}
	case msgStartupNotification:
		// Consumed silently; the stick sends one after every reset.
	}
}

// channel is one open slot on the stick.
type channel struct {
	node     *Node
	number   uint8
	handler  ant.Handler
	wildcard bool

	mu      sync.Mutex
	state   ant.ChannelState
	idAsked bool
}

// onBroadcast runs on the node's read loop goroutine.
func (c *channel) onBroadcast(data []byte) {
	c.mu.Lock()
	first := c.state == ant.ChannelSearching
	if first {
		c.state = ant.ChannelTracking
	}
	ask := first && c.wildcard && !c.idAsked
	if ask {
		c.idAsked = true
	}
	c.mu.Unlock()

	if ask {
		// Ask the stick which device the wildcard search locked on to;
		// the channel ID response becomes the discovery notification.
		if err := c.node.write(msgRequestMessage, []byte{c.number, msgChannelID}); err != nil {
			log.Printf("ant: request channel id: %v", err)
		}
	}

	c.handler.OnBroadcast(data)
}

func (c *channel) onDeviceFound(number uint16, transType uint8) {
	c.handler.OnDeviceFound(number, transType)
}

func (c *channel) onEvent(msgID, code byte) {
	if msgID != 1 {
		return
	}
	switch code {
	case eventRxSearchTimeout:
		log.Printf("ant: channel %d search timed out", c.number)
		c.setState(ant.ChannelClosed)
	case eventChannelClosed:
		c.setState(ant.ChannelClosed)
	}
}

// State returns the channel's current state.
func (c *channel) State() ant.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) setState(s ant.ChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close closes and unassigns the channel on the stick.
func (c *channel) Close() error {
	if err := c.node.write(msgCloseChannel, []byte{c.number}); err != nil {
		return fmt.Errorf("close channel %d: %w", c.number, err)
	}
	if err := c.node.write(msgUnassignChannel, []byte{c.number}); err != nil {
		return fmt.Errorf("unassign channel %d: %w", c.number, err)
	}
	c.setState(ant.ChannelClosed)

	c.node.mu.Lock()
	delete(c.node.channels, c.number)
	c.node.mu.Unlock()
	return nil
}
