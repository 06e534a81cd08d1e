//go:build !tinygo

package sim

import (
	"github.com/pkg/errors"

	"dccwave/core"
)

// ErrNotAnalogPin is returned when a pin has no ADC channel on the board.
var ErrNotAnalogPin = errors.New("pin has no analog channel")

// ADC simulates a successive-approximation converter with a fixed
// conversion time measured on the board's virtual clock.
type ADC struct {
	board        *Board
	synchronized bool
	latency      uint64 // ticks per conversion

	channels map[core.Pin]uint8
	values   [16]uint16

	busy    bool
	channel uint8
	readyAt uint64

	// Conversions counts started and blocking conversions.
	Conversions int
}

// NewADC creates an ADC on board. channels maps analog pins to ADC inputs.
func NewADC(board *Board, synchronized bool, latency uint64, channels map[core.Pin]uint8) *ADC {
	a := &ADC{
		board:        board,
		synchronized: synchronized,
		latency:      latency,
		channels:     make(map[core.Pin]uint8, len(channels)),
	}
	for pin, ch := range channels {
		a.channels[pin] = ch
	}
	return a
}

// Synchronized reports whether conversions are paced by the signal ISR.
func (a *ADC) Synchronized() bool {
	return a.synchronized
}

// ConfigureChannel maps pin to its ADC input.
func (a *ADC) ConfigureChannel(pin core.Pin) (uint8, error) {
	ch, ok := a.channels[pin]
	if !ok || int(ch) >= len(a.values) {
		return 0, errors.Wrapf(ErrNotAnalogPin, "pin %d", pin)
	}
	return ch, nil
}

// ReadBlocking converts channel and returns the result. The virtual clock
// does not move; the caller owns the CPU for the whole conversion.
func (a *ADC) ReadBlocking(channel uint8) (uint16, error) {
	if int(channel) >= len(a.values) {
		return 0, errors.Errorf("adc channel %d out of range", channel)
	}
	a.busy = false
	a.Conversions++
	return a.values[channel], nil
}

// StartConversion begins a conversion on channel.
func (a *ADC) StartConversion(channel uint8) {
	a.busy = true
	a.channel = channel
	a.readyAt = a.board.Now() + a.latency
	a.Conversions++
}

// ConversionDone returns the finished result once the conversion time has
// elapsed.
func (a *ADC) ConversionDone() (uint16, bool) {
	if !a.busy || a.board.Now() < a.readyAt {
		return 0, false
	}
	a.busy = false
	return a.values[a.channel%uint8(len(a.values))], true
}

// SetValue sets the voltage seen on pin as a raw 10-bit reading.
func (a *ADC) SetValue(pin core.Pin, raw uint16) error {
	ch, ok := a.channels[pin]
	if !ok {
		return errors.Wrapf(ErrNotAnalogPin, "pin %d", pin)
	}
	a.values[ch] = raw & 0x3ff
	return nil
}
