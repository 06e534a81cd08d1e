//go:build tinygo && rp2040

package main

import (
	"errors"
	"machine"

	"dccwave/core"
)

// rpGPIODriver switches software-driven track pins.
type rpGPIODriver struct {
	configured uint32 // bit per GPIO
}

func (d *rpGPIODriver) ConfigureOutput(pin core.Pin) error {
	if pin > 29 {
		return errors.New("invalid GPIO")
	}
	if d.configured&(1<<pin) != 0 {
		return nil
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configured |= 1 << pin
	return nil
}

func (d *rpGPIODriver) Set(pin core.Pin, high bool) {
	machine.Pin(pin).Set(high)
}
