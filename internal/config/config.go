// Package config loads the optional YAML config file for the hrm-bridge
// daemon. Every field has a flag counterpart in cmd/hrm-bridge; flags win
// when both are given.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the file layout.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

// BridgeConfig holds the daemon settings.
type BridgeConfig struct {
	SerialDevice     string `yaml:"serial_device"`
	Broker           string `yaml:"broker"`
	WSBroker         string `yaml:"ws_broker"`
	HTTPAddr         string `yaml:"http_addr"`
	HeartbeatMs      int64  `yaml:"heartbeat_ms"`
	DeviceNumber     uint16 `yaml:"device_number"` // 0 = pairing mode
	TransmissionType uint8  `yaml:"transmission_type"`
	LEDPin           int    `yaml:"led_pin"` // 0 = LED disabled
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
