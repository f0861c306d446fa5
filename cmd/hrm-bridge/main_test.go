package main

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/hrm-bridge/internal/ant"
	"github.com/sweeney/hrm-bridge/internal/config"
	"github.com/sweeney/hrm-bridge/internal/hrm"
	"github.com/sweeney/hrm-bridge/internal/led"
	"github.com/sweeney/hrm-bridge/internal/mqtt"
	"github.com/sweeney/hrm-bridge/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants — not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "wifi" {
		t.Errorf("Type: got %q, want wifi", info.Type)
	}
	if info.IP != "192.168.1.100" {
		t.Errorf("IP: got %q, want 192.168.1.100", info.IP)
	}
	if info.SSID != "MyNetwork" {
		t.Errorf("SSID: got %q, want MyNetwork", info.SSID)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestResolveWSBroker(t *testing.T) {
	cases := []struct {
		ws     string
		broker string
		want   string
	}{
		{"off", "tcp://192.168.1.200:1883", ""},
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"ws://other:9090", "tcp://192.168.1.200:1883", "ws://other:9090"},
	}
	for _, c := range cases {
		if got := resolveWSBroker(c.ws, c.broker); got != c.want {
			t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", c.ws, c.broker, got, c.want)
		}
	}
}

func TestLedModeFor(t *testing.T) {
	cases := map[ant.ChannelState]led.Mode{
		ant.ChannelAssigned:  led.ModeOff,
		ant.ChannelSearching: led.ModeBlink,
		ant.ChannelTracking:  led.ModeSolid,
		ant.ChannelClosed:    led.ModeOff,
	}
	for state, want := range cases {
		if got := ledModeFor(state); got != want {
			t.Errorf("ledModeFor(%v): got %v, want %v", state, got, want)
		}
	}
}

func TestApplyConfigFillsUnsetFlags(t *testing.T) {
	opts := options{
		serialDevice: "/dev/ttyUSB0",
		broker:       "tcp://default:1883",
		heartbeat:    15 * time.Minute,
	}
	cfg := &config.Config{Bridge: config.BridgeConfig{
		SerialDevice: "/dev/ttyUSB1",
		Broker:       "tcp://file:1883",
		HeartbeatMs:  60000,
		DeviceNumber: 777,
		LEDPin:       17,
	}}

	applyConfig(&opts, cfg, map[string]bool{})

	if opts.serialDevice != "/dev/ttyUSB1" {
		t.Errorf("serial: got %q", opts.serialDevice)
	}
	if opts.broker != "tcp://file:1883" {
		t.Errorf("broker: got %q", opts.broker)
	}
	if opts.heartbeat != time.Minute {
		t.Errorf("heartbeat: got %v", opts.heartbeat)
	}
	if opts.deviceNumber != 777 {
		t.Errorf("device: got %d", opts.deviceNumber)
	}
	if opts.ledPin != 17 {
		t.Errorf("led pin: got %d", opts.ledPin)
	}
}

func TestApplyConfigFlagsWin(t *testing.T) {
	opts := options{
		serialDevice: "/dev/ttyACM0",
		broker:       "tcp://cli:1883",
	}
	cfg := &config.Config{Bridge: config.BridgeConfig{
		SerialDevice: "/dev/ttyUSB1",
		Broker:       "tcp://file:1883",
	}}

	applyConfig(&opts, cfg, map[string]bool{"serial": true, "broker": true})

	if opts.serialDevice != "/dev/ttyACM0" {
		t.Errorf("serial: got %q, want flag value", opts.serialDevice)
	}
	if opts.broker != "tcp://cli:1883" {
		t.Errorf("broker: got %q, want flag value", opts.broker)
	}
}

// fakeClock is an injectable time source for runLoop tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// loopFixture wires runLoop to fakes and runs it on a goroutine.
type loopFixture struct {
	node    *ant.FakeNode
	channel *ant.FakeChannel
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	led     *led.FakeDriver
	clock   *fakeClock
	tick    chan time.Time
	sig     chan os.Signal
	done    chan error
}

func startLoop(t *testing.T, heartbeat time.Duration) *loopFixture {
	t.Helper()

	f := &loopFixture{
		node:  ant.NewFakeNode(),
		pub:   mqtt.NewFakePublisher(),
		led:   led.NewFakeDriver(),
		clock: &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		tick:  make(chan time.Time),
		sig:   make(chan os.Signal, 1),
		done:  make(chan error, 1),
	}
	f.pub.Connected = true
	f.tracker = status.NewTracker(f.clock.now(), status.Config{Broker: "tcp://test:1883"})

	session, err := hrm.Open(f.node, hrm.Config{})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	f.channel = f.node.Channels[0]

	go func() {
		f.done <- runLoop(session, f.pub, f.pub, f.tracker, f.led, heartbeat, f.clock.now, f.tick, f.sig)
	}()
	return f
}

func (f *loopFixture) stop(t *testing.T) {
	t.Helper()
	f.sig <- syscall.SIGTERM
	if err := <-f.done; err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	f := startLoop(t, 0)

	f.stop(t)

	if len(f.pub.SystemEvents) != 1 {
		t.Fatalf("system events: got %d, want 1", len(f.pub.SystemEvents))
	}
	event := f.pub.SystemEvents[0]
	if event.Event != "SHUTDOWN" {
		t.Errorf("event: got %q, want SHUTDOWN", event.Event)
	}
	if event.Reason != "SIGTERM" {
		t.Errorf("reason: got %q, want SIGTERM", event.Reason)
	}
	if !event.Retained {
		t.Error("shutdown event should be retained")
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(event.RawPayload, &sj); err != nil {
		t.Fatalf("unmarshal shutdown payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" {
		t.Errorf("payload event: got %q, want SHUTDOWN", sj.Status.Event)
	}
}

func TestRunLoopTickUpdatesTrackerAndLED(t *testing.T) {
	f := startLoop(t, 0)

	// Searching at first.
	f.tick <- f.clock.now()
	// Delivering a broadcast moves the fake channel to tracking.
	f.channel.Deliver(make([]byte, 9))
	f.tick <- f.clock.now()

	f.stop(t)

	snap := f.tracker.Snapshot()
	if snap.ChannelState != "TRACKING" {
		t.Errorf("channel state: got %q, want TRACKING", snap.ChannelState)
	}
	if !snap.MQTTConnected {
		t.Error("tracker should reflect mqtt connection")
	}

	if len(f.led.Modes) < 2 {
		t.Fatalf("led modes: got %v, want at least 2", f.led.Modes)
	}
	if f.led.Modes[0] != led.ModeBlink {
		t.Errorf("led while searching: got %v, want ModeBlink", f.led.Modes[0])
	}
	if f.led.Current() != led.ModeSolid {
		t.Errorf("led while tracking: got %v, want ModeSolid", f.led.Current())
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	f := startLoop(t, 15*time.Minute)

	// First tick before the interval: no heartbeat.
	f.tick <- f.clock.now()

	f.clock.advance(16 * time.Minute)
	f.tick <- f.clock.now()

	f.stop(t)

	var heartbeats []mqtt.SystemEvent
	for _, e := range f.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, e)
		}
	}
	if len(heartbeats) != 1 {
		t.Fatalf("heartbeats: got %d, want 1", len(heartbeats))
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(heartbeats[0].RawPayload, &sj); err != nil {
		t.Fatalf("unmarshal heartbeat payload: %v", err)
	}
	if sj.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: got %q, want HEARTBEAT", sj.Status.Event)
	}
}

// scanNode feeds one broadcast as soon as the channel opens, so runScan
// sees a reading on its first poll.
type scanNode struct {
	*ant.FakeNode
	payload []byte
}

func (n *scanNode) OpenChannel(params ant.Params, handler ant.Handler) (ant.Channel, error) {
	ch, err := n.FakeNode.OpenChannel(params, handler)
	if err != nil {
		return nil, err
	}
	n.Channels[len(n.Channels)-1].Deliver(n.payload)
	return ch, nil
}

// deadAirNode opens a channel whose search has already given up.
type deadAirNode struct {
	*ant.FakeNode
}

func (n *deadAirNode) OpenChannel(params ant.Params, handler ant.Handler) (ant.Channel, error) {
	ch, err := n.FakeNode.OpenChannel(params, handler)
	if err != nil {
		return nil, err
	}
	n.Channels[len(n.Channels)-1].SetState(ant.ChannelClosed)
	return ch, nil
}

func TestRunScanFirstReading(t *testing.T) {
	p := make([]byte, 9)
	p[8] = 70
	node := &scanNode{FakeNode: ant.NewFakeNode(), payload: p}

	if err := runScan(node, options{}); err != nil {
		t.Fatalf("runScan: %v", err)
	}
	if !node.Channels[0].Closed {
		t.Error("scan should close the channel when done")
	}
}

func TestRunScanSearchTimeout(t *testing.T) {
	node := &deadAirNode{FakeNode: ant.NewFakeNode()}

	if err := runScan(node, options{}); err == nil {
		t.Fatal("expected error when the search times out")
	}
}

func TestRunScanOpenError(t *testing.T) {
	node := ant.NewFakeNode()
	node.OpenError = errors.New("stick unplugged")

	if err := runScan(node, options{}); err == nil {
		t.Fatal("expected error when the channel cannot be opened")
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	f := startLoop(t, 0)

	f.clock.advance(24 * time.Hour)
	f.tick <- f.clock.now()
	f.tick <- f.clock.now()

	f.stop(t)

	for _, e := range f.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			t.Fatal("heartbeat published with interval 0")
		}
	}
}
