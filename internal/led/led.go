// Package led drives the front-panel status LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package led

// Mode is the display pattern for the status LED.
type Mode int

const (
	// ModeOff: no channel open.
	ModeOff Mode = iota
	// ModeBlink: searching for a monitor.
	ModeBlink
	// ModeSolid: tracking a monitor.
	ModeSolid
)

// Driver sets the LED state.
type Driver interface {
	// Set applies the given mode. Setting the current mode is a no-op.
	Set(mode Mode) error

	// Close turns the LED off and releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the status LED is wired to.
const DefaultPin = 21
