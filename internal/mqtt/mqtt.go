// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for heart rate samples.
const Topic = "fitness/hrm/bridge/samples"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "fitness/hrm/bridge/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a heart rate sample to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(sample Sample) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Sample is one decoded heart rate broadcast ready for publishing.
type Sample struct {
	Timestamp    time.Time
	HeartRate    uint8
	BeatCount    uint32
	RRIntervalMs int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	HeartRate SamplePayload `json:"heartrate"`
}

// SamplePayload contains the sample details.
type SamplePayload struct {
	Timestamp    string `json:"timestamp"`
	BPM          uint8  `json:"bpm"`
	BeatCount    uint32 `json:"beat_count"`
	RRIntervalMs int    `json:"rr_interval_ms"`
}

// FormatPayload creates the JSON payload for a heart rate sample.
func FormatPayload(sample Sample) ([]byte, error) {
	payload := Payload{
		HeartRate: SamplePayload{
			Timestamp:    sample.Timestamp.UTC().Format(time.RFC3339),
			BPM:          sample.HeartRate,
			BeatCount:    sample.BeatCount,
			RRIntervalMs: sample.RRIntervalMs,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
