package hrm

import "sync"

// Monitor holds the latest decoded state behind a mutex. Broadcasts arrive
// on the channel layer's dispatch goroutine while application code polls
// from its own, so every accessor returns a copy taken under the lock and
// callbacks run only after the lock is released.
type Monitor struct {
	mu       sync.Mutex
	state    State
	device   Device
	detected bool
	cb       Callbacks
}

// NewMonitor creates a Monitor with the given callbacks. Both callbacks
// are optional.
func NewMonitor(cb Callbacks) *Monitor {
	return &Monitor{cb: cb}
}

// OnBroadcast decodes one raw payload and publishes the result.
// Payloads of the wrong length are dropped without touching state or
// invoking the callback. The data callback is invoked after the lock is
// released, with values captured under it, so observer code may read the
// monitor back without deadlocking.
func (m *Monitor) OnBroadcast(raw []byte) {
	m.mu.Lock()
	next, ok := Decode(raw, m.state)
	if !ok {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	if m.cb.HeartRateData != nil {
		m.cb.HeartRateData(next.ComputedHeartRate, next.BeatCount, next.RRIntervalMs)
	}
}

// OnDeviceFound records the identity of the monitor the search locked on
// to. Later discoveries overwrite earlier ones. Decode state is untouched.
func (m *Monitor) OnDeviceFound(deviceNumber uint16, transmissionType uint8) {
	m.mu.Lock()
	m.device = Device{Number: deviceNumber, TransmissionType: transmissionType}
	m.detected = true
	m.mu.Unlock()

	if m.cb.DeviceFound != nil {
		m.cb.DeviceFound(deviceNumber, transmissionType)
	}
}

// HeartRate returns the most recent computed heart rate in bpm. ok is
// false until the first valid broadcast has been decoded; after that the
// value is always the latest one, including zero.
func (m *Monitor) HeartRate() (uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ComputedHeartRate, m.state.HeartRateValid
}

// BeatCount returns the cumulative beat count for this session.
func (m *Monitor) BeatCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.BeatCount
}

// RRInterval returns the R-R interval, in milliseconds, from the most
// recent broadcast that represented exactly one new beat; zero otherwise.
func (m *Monitor) RRInterval() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RRIntervalMs
}

// DetectedDevice returns the identity of the monitor found during search.
// ok is false until a discovery event has been delivered.
func (m *Monitor) DetectedDevice() (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device, m.detected
}
