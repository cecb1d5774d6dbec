//go:build !linux

package hw

import "errors"

// DefaultPumpPin is the BCM line driving the pump relay.
const DefaultPumpPin = 18

// GPIOPump is not available on non-Linux platforms.
type GPIOPump struct{}

// NewGPIOPump returns an error on non-Linux platforms.
func NewGPIOPump(chipName string, pin int) (*GPIOPump, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetPump is not implemented on non-Linux platforms.
func (p *GPIOPump) SetPump(on bool) {}

// Close is not implemented on non-Linux platforms.
func (p *GPIOPump) Close() error { return nil }
