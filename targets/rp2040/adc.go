//go:build tinygo && rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"dccwave/core"
)

var errNotADCPin = errors.New("pin has no ADC input")

// rpADCDriver runs single conversions through the ADC control register so
// the signal ISR can start one and collect it on a later interrupt.
type rpADCDriver struct {
	busy bool
}

func newADCDriver() *rpADCDriver {
	machine.InitADC()
	return &rpADCDriver{}
}

// Synchronized is true: a START_ONCE conversion takes 2us, well inside a
// half-cycle, so Scan runs in the signal ISR.
func (d *rpADCDriver) Synchronized() bool {
	return true
}

// ConfigureChannel maps GPIO26-29 to ADC inputs 0-3.
func (d *rpADCDriver) ConfigureChannel(pin core.Pin) (uint8, error) {
	if pin < 26 || pin > 29 {
		return 0, errNotADCPin
	}
	adc := machine.ADC{Pin: machine.Pin(pin)}
	adc.Configure(machine.ADCConfig{})
	return uint8(pin - 26), nil
}

func (d *rpADCDriver) ReadBlocking(channel uint8) (uint16, error) {
	d.StartConversion(channel)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}
	d.busy = false
	return uint16(rp.ADC.RESULT.Get()), nil
}

func (d *rpADCDriver) StartConversion(channel uint8) {
	rp.ADC.CS.ReplaceBits(uint32(channel)<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	d.busy = true
}

func (d *rpADCDriver) ConversionDone() (uint16, bool) {
	if !d.busy || !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
		return 0, false
	}
	d.busy = false
	return uint16(rp.ADC.RESULT.Get()), true
}
