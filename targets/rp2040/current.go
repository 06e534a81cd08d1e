//go:build tinygo && rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/ina260"
)

const (
	// currentSensePin is the sampler pin the INA260 reading is filed under.
	// It lies outside the GPIO range so it never collides with an ADC pin.
	currentSensePin = 200
	currentI2CFreq  = 400000
)

var errNoINA260 = errors.New("ina260 not found on I2C0")

// ina260Source reports the track supply current in milliamps.
type ina260Source struct {
	dev ina260.Device
}

// newINA260Source probes an INA260 on I2C0 (SDA=GP4, SCL=GP5).
func newINA260Source() (*ina260Source, error) {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: currentI2CFreq}); err != nil {
		return nil, err
	}
	dev := ina260.New(i2c)
	if !dev.Connected() {
		return nil, errNoINA260
	}
	dev.Configure(ina260.Config{})
	return &ina260Source{dev: dev}, nil
}

// Sample returns the current in mA, clamped to the sampler's range. Reverse
// current reads as zero.
func (s *ina260Source) Sample() (uint16, error) {
	ma := s.dev.Current() / 1000
	if ma < 0 {
		return 0, nil
	}
	if ma > 0xffff {
		return 0xffff, nil
	}
	return uint16(ma), nil
}
