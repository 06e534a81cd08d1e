// Package serial opens the console port of a command station: USB CDC on
// boards with native USB, a UART bridge on the rest.
package serial

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultBaud matches the firmware UART. USB CDC ignores it.
	DefaultBaud = 115200
	// DefaultReadTimeout bounds a single Read so readers can notice
	// cancellation.
	DefaultReadTimeout = 100 * time.Millisecond
)

// ErrNoDevice is returned when Config has no device path.
var ErrNoDevice = errors.New("no serial device given")

// Config of a station console port.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string
	// Baud rate
	Baud int
	// ReadTimeout of a single Read, 0 selects DefaultReadTimeout
	ReadTimeout time.Duration
}

// DefaultConfig returns the console settings for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}

// withDefaults fills unset fields and rejects an empty device.
func (c Config) withDefaults() (Config, error) {
	if c.Device == "" {
		return c, ErrNoDevice
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c, nil
}
