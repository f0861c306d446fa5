package led

// FakeDriver is a test double that records mode changes.
type FakeDriver struct {
	// Modes contains every mode passed to Set, in order.
	Modes []Mode

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// Set records the mode.
func (f *FakeDriver) Set(mode Mode) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Modes = append(f.Modes, mode)
	return nil
}

// Current returns the most recently set mode, or ModeOff if none.
func (f *FakeDriver) Current() Mode {
	if len(f.Modes) == 0 {
		return ModeOff
	}
	return f.Modes[len(f.Modes)-1]
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}
