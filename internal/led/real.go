//go:build linux

package led

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// blinkPeriod is the half-period of the searching pattern.
const blinkPeriod = 500 * time.Millisecond

// RealDriver drives an LED on actual hardware using Linux GPIO character device.
type RealDriver struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu   sync.Mutex
	mode Mode
	stop chan struct{} // non-nil while the blink goroutine runs
}

// NewRealDriver creates an LED driver for actual Raspberry Pi hardware.
func NewRealDriver(pin int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}

	return &RealDriver{chip: chip, line: line}, nil
}

// Set applies the given mode, stopping any running blink pattern first.
func (d *RealDriver) Set(mode Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mode == d.mode {
		return nil
	}
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.mode = mode

	switch mode {
	case ModeOff:
		return d.line.SetValue(0)
	case ModeSolid:
		return d.line.SetValue(1)
	case ModeBlink:
		stop := make(chan struct{})
		d.stop = stop
		go d.blink(stop)
		return nil
	}
	return fmt.Errorf("unknown led mode %d", mode)
}

func (d *RealDriver) blink(stop chan struct{}) {
	ticker := time.NewTicker(blinkPeriod)
	defer ticker.Stop()

	on := true
	d.line.SetValue(1)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			on = !on
			v := 0
			if on {
				v = 1
			}
			d.line.SetValue(v)
		}
	}
}

// Close turns the LED off and releases GPIO resources.
func (d *RealDriver) Close() error {
	d.mu.Lock()
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.mu.Unlock()

	var errs []error
	if d.line != nil {
		if err := d.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear led pin: %w", err))
		}
		if err := d.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led pin: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
