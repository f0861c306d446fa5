// Package status provides a thread-safe status tracker for the hrm-bridge
// daemon. It is designed to be read by HTTP handlers and the LED driver.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// DeviceInfo identifies the heart rate monitor found during search.
type DeviceInfo struct {
	Number           uint16
	TransmissionType uint8
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs      int64
	Broker           string
	HTTPPort         string
	WSBroker         string // Websocket broker URL for browser MQTT (empty = disabled)
	SerialDevice     string
	DeviceNumber     uint16 // 0 = pairing mode
	TransmissionType uint8
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	HeartRate      uint8
	HeartRateValid bool
	BeatCount      uint32
	RRIntervalMs   int
	ChannelState   string
	Device         *DeviceInfo
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateSample sets the latest decoded values.
// Called from the heart rate data callback on every broadcast.
func (t *Tracker) UpdateSample(rate uint8, valid bool, beatCount uint32, rrMs int) {
	t.mu.Lock()
	t.snap.HeartRate = rate
	t.snap.HeartRateValid = valid
	t.snap.BeatCount = beatCount
	t.snap.RRIntervalMs = rrMs
	t.mu.Unlock()
}

// SetChannelState sets the displayed ANT channel state.
func (t *Tracker) SetChannelState(state string) {
	t.mu.Lock()
	t.snap.ChannelState = state
	t.mu.Unlock()
}

// SetDevice records the detected monitor identity.
func (t *Tracker) SetDevice(number uint16, transmissionType uint8) {
	t.mu.Lock()
	t.snap.Device = &DeviceInfo{Number: number, TransmissionType: transmissionType}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
