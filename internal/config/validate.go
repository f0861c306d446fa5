package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only and MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	b := cfg.Bridge

	if b.Broker != "" {
		u, err := url.Parse(b.Broker)
		if err != nil {
			return fmt.Errorf("broker %q: %w", b.Broker, err)
		}
		switch u.Scheme {
		case "tcp", "ssl", "ws", "wss":
		default:
			return fmt.Errorf("broker %q: scheme must be tcp, ssl, ws, or wss", b.Broker)
		}
	}

	if b.WSBroker != "" {
		if !strings.HasPrefix(b.WSBroker, "ws://") && !strings.HasPrefix(b.WSBroker, "wss://") {
			return fmt.Errorf("ws_broker %q: must be a ws:// or wss:// URL", b.WSBroker)
		}
	}

	if b.HeartbeatMs < 0 {
		return fmt.Errorf("heartbeat_ms must be >= 0, got %d", b.HeartbeatMs)
	}

	if b.LEDPin < 0 {
		return fmt.Errorf("led_pin must be >= 0, got %d", b.LEDPin)
	}

	// A transmission type without a device number cannot narrow the
	// search: the radio ignores it in wildcard mode.
	if b.TransmissionType != 0 && b.DeviceNumber == 0 {
		return fmt.Errorf("transmission_type requires device_number")
	}

	return nil
}
