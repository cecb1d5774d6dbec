//go:build linux

package hw

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultPumpPin is the BCM line driving the pump relay.
const DefaultPumpPin = 18

// GPIOPump drives the pump relay through the Linux GPIO character device.
// The relay is active-low: line value 0 runs the pump.
type GPIOPump struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewGPIOPump requests the pump line as an output, forced to the off level.
func NewGPIOPump(chipName string, pin int) (*GPIOPump, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	// Initial value 1 = relay released = pump off.
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(1))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pin, err)
	}
	return &GPIOPump{chip: chip, line: line}, nil
}

// SetPump drives the relay. The actuator is treated as infallible by the
// engine; a driver error is logged and swallowed here.
func (p *GPIOPump) SetPump(on bool) {
	value := 1
	if on {
		value = 0
	}
	if err := p.line.SetValue(value); err != nil {
		log.Printf("gpio: set pump %v: %v", on, err)
	}
}

// Close releases the line after forcing the pump off.
func (p *GPIOPump) Close() error {
	var errs []error
	if p.line != nil {
		if err := p.line.SetValue(1); err != nil {
			errs = append(errs, fmt.Errorf("force pump off: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pump line: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
