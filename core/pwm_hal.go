package core

// Pin identifies a physical pin on the target.
type Pin uint8

// PWMPinTable is the static set of pins wired to the signal timer's compare
// outputs. It is fixed per target at build time.
type PWMPinTable [4]uint64

// NewPWMPinTable builds a table from the given pins.
func NewPWMPinTable(pins ...Pin) PWMPinTable {
	var t PWMPinTable
	for _, p := range pins {
		t[p>>6] |= 1 << (p & 63)
	}
	return t
}

// Has reports whether pin can be switched by the duty-cycle mechanism.
func (t PWMPinTable) Has(pin Pin) bool {
	return t[pin>>6]&(1<<(pin&63)) != 0
}

// Pins lists the table entries in ascending order.
func (t PWMPinTable) Pins() []Pin {
	var pins []Pin
	for i := 0; i < 256; i++ {
		if t.Has(Pin(i)) {
			pins = append(pins, Pin(i))
		}
	}
	return pins
}

// SignalBackend is the hardware timer the DCC waveform runs on.
// Exactly one implementation is linked into each target.
type SignalBackend interface {
	// Start claims the timer and arranges for isr to run every periodTicks.
	// An error means the timer cannot be claimed; the caller treats it as fatal.
	Start(periodTicks uint32, isr func()) error

	// ClockHz returns the frequency of the timer clock.
	ClockHz() uint32

	// Ticks returns a free-running tick count in timer clock units.
	Ticks() uint32

	// PWMPins returns the static PWM capability table.
	PWMPins() PWMPinTable

	// SetCompare loads the double-buffered compare for pin so the next cycle
	// runs at 0% (low) or 100% (high) duty.
	SetCompare(pin Pin, high bool)

	// ReleasePWM disconnects the compare outputs and returns the pins to
	// plain digital control.
	ReleasePWM()

	// UniqueID returns chip-specific identifier bytes, or nil if the chip has
	// no usable unique ID source.
	UniqueID() []byte

	// Reset clears any cached compare or counter state. The timer keeps running.
	Reset()
}
