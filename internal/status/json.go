package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	HeartRateBPM  *uint8       `json:"heart_rate_bpm"` // null until the first reading
	BeatCount     uint32       `json:"beat_count"`
	RRIntervalMs  int          `json:"rr_interval_ms"`
	Channel       string       `json:"channel_state"`
	Device        *DeviceJSON  `json:"device,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DeviceJSON is the JSON representation of the detected monitor.
type DeviceJSON struct {
	Number           uint16 `json:"number"`
	TransmissionType uint8  `json:"transmission_type"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPPort         string `json:"http_port"`
	WSBroker         string `json:"ws_broker,omitempty"`
	SerialDevice     string `json:"serial_device"`
	DeviceNumber     uint16 `json:"device_number"`
	TransmissionType uint8  `json:"transmission_type"`
}

func buildInner(snap Snapshot) StatusInner {
	channel := snap.ChannelState
	if channel == "" {
		channel = "UNKNOWN"
	}

	inner := StatusInner{
		BeatCount:     snap.BeatCount,
		RRIntervalMs:  snap.RRIntervalMs,
		Channel:       channel,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			WSBroker:         snap.Config.WSBroker,
			SerialDevice:     snap.Config.SerialDevice,
			DeviceNumber:     snap.Config.DeviceNumber,
			TransmissionType: snap.Config.TransmissionType,
		},
	}

	if snap.HeartRateValid {
		rate := snap.HeartRate
		inner.HeartRateBPM = &rate
	}
	if snap.Device != nil {
		inner.Device = &DeviceJSON{
			Number:           snap.Device.Number,
			TransmissionType: snap.Device.TransmissionType,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
