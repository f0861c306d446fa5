package ant

import "sync"

// FakeNode is a test double that records opened channels.
type FakeNode struct {
	// Channels contains every channel opened on this node, in order.
	Channels []*FakeChannel

	// OpenError, if set, will be returned by OpenChannel.
	OpenError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeNode creates a FakeNode.
func NewFakeNode() *FakeNode {
	return &FakeNode{}
}

// OpenChannel records the params and returns a FakeChannel in the
// Searching state.
func (n *FakeNode) OpenChannel(params Params, handler Handler) (Channel, error) {
	if n.OpenError != nil {
		return nil, n.OpenError
	}
	ch := &FakeChannel{
		Params:  params,
		handler: handler,
		state:   ChannelSearching,
	}
	n.Channels = append(n.Channels, ch)
	return ch, nil
}

// Close marks the node as closed.
func (n *FakeNode) Close() error {
	n.Closed = true
	return nil
}

// FakeChannel lets tests drive the handler the way the radio's dispatch
// goroutine would. Safe for concurrent use, since tests deliver from a
// different goroutine than the code under test reads state on.
type FakeChannel struct {
	// Params holds the params the channel was opened with.
	Params Params

	// Closed tracks if Close was called.
	Closed bool

	handler Handler

	mu    sync.Mutex
	state ChannelState
}

// State returns the current scripted state.
func (c *FakeChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState moves the channel to the given state.
func (c *FakeChannel) SetState(s ChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close marks the channel closed.
func (c *FakeChannel) Close() error {
	c.Closed = true
	c.SetState(ChannelClosed)
	return nil
}

// Deliver pushes one raw broadcast to the handler. The first broadcast
// moves a Searching channel to Tracking, matching the real node.
func (c *FakeChannel) Deliver(data []byte) {
	c.mu.Lock()
	if c.state == ChannelSearching {
		c.state = ChannelTracking
	}
	c.mu.Unlock()
	c.handler.OnBroadcast(data)
}

// Discover pushes a device-found event to the handler.
func (c *FakeChannel) Discover(deviceNumber uint16, transmissionType uint8) {
	c.handler.OnDeviceFound(deviceNumber, transmissionType)
}
