//go:build !tinygo

package serial

import (
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// Port is an open station console.
type Port struct {
	port   *serial.Port
	device string
}

// Open opens the console port and discards whatever the station printed
// before we attached (boot banner, half a reply), so the first frame read
// is a fresh one.
func Open(cfg Config) (*Port, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "failed to flush serial port %s", cfg.Device)
	}
	return &Port{port: port, device: cfg.Device}, nil
}

// Device returns the path the port was opened on.
func (p *Port) Device() string {
	return p.device
}

// Read returns 0, nil when the read timeout expires without data.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) Close() error {
	return p.port.Close()
}
