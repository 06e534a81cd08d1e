// Synchronized analog sampling
// Conversions are paced so they never stall the signal ISR; readers always
// get the most recent completed value.
package core

import "sync/atomic"

// MaxAnalogPins is the number of analog pins the sampler can track.
const MaxAnalogPins = 16

// AnalogSampler caches the latest conversion for each initialized pin.
// One instance exists per device.
type AnalogSampler struct {
	driver       AnalogDriver
	synchronized bool
	running      uint32 // atomic bool

	usedPins   uint16 // slots in use
	sourcePins uint16 // slots backed by an AnalogSource instead of the ADC

	pins     [MaxAnalogPins]Pin
	channels [MaxAnalogPins]uint8
	sources  [MaxAnalogPins]AnalogSource
	values   [MaxAnalogPins]uint32 // atomic, last completed conversion

	// Scan state, only touched by the scanning context.
	current uint8
	waiting bool
}

// NewAnalogSampler creates a sampler over the target's ADC driver.
func NewAnalogSampler(driver AnalogDriver) *AnalogSampler {
	return &AnalogSampler{
		driver:       driver,
		synchronized: driver.Synchronized(),
	}
}

// Global singleton used by target code.
var analogSampler *AnalogSampler

// InstallAnalogSampler registers the device's sampler.
func InstallAnalogSampler(s *AnalogSampler) {
	analogSampler = s
}

// MustAnalogSampler returns the installed sampler or panics if missing.
func MustAnalogSampler() *AnalogSampler {
	if analogSampler == nil {
		panic("analog sampler not installed")
	}
	return analogSampler
}

// Synchronized reports whether Scan runs inside the signal ISR.
func (s *AnalogSampler) Synchronized() bool {
	return s.synchronized
}

func (s *AnalogSampler) start() {
	atomic.StoreUint32(&s.running, 1)
}

// Init prepares pin for sampling and returns one fresh conversion, which
// callers use as the zero offset for later readings.
//
// When the ADC is synchronized with the signal timer, Init must run before
// SignalTimer.Begin; afterwards it returns ErrSamplerRunning.
func (s *AnalogSampler) Init(pin Pin) (int, error) {
	if s.synchronized && atomic.LoadUint32(&s.running) != 0 {
		return 0, ErrSamplerRunning
	}
	if slot, ok := s.slotOf(pin); ok {
		return int(atomic.LoadUint32(&s.values[slot])), nil
	}
	slot, ok := s.freeSlot()
	if !ok {
		return 0, ErrTooManyAnalogPins
	}
	ch, err := s.driver.ConfigureChannel(pin)
	if err != nil {
		return 0, err
	}
	// A blocking read replaces any conversion the foreground scan left in
	// flight; the scan restarts it on its next step.
	s.waiting = false
	value, err := s.driver.ReadBlocking(ch)
	if err != nil {
		return 0, err
	}

	s.pins[slot] = pin
	s.channels[slot] = ch
	atomic.StoreUint32(&s.values[slot], uint32(value))
	state := disableInterrupts()
	s.usedPins |= 1 << slot
	restoreInterrupts(state)
	return int(value), nil
}

// AttachSource registers an external analog source under pin. Sources are
// sampled by Poll from foreground code, never from the ISR, and their
// values are read through Read like any ADC pin. Returns the first sample.
func (s *AnalogSampler) AttachSource(pin Pin, src AnalogSource) (int, error) {
	if _, ok := s.slotOf(pin); ok {
		return 0, ErrPinInUse
	}
	slot, ok := s.freeSlot()
	if !ok {
		return 0, ErrTooManyAnalogPins
	}
	value, err := src.Sample()
	if err != nil {
		return 0, err
	}

	s.pins[slot] = pin
	s.sources[slot] = src
	atomic.StoreUint32(&s.values[slot], uint32(value))
	state := disableInterrupts()
	s.sourcePins |= 1 << slot
	s.usedPins |= 1 << slot
	restoreInterrupts(state)
	return int(value), nil
}

// Read returns the most recent completed conversion for pin. fromISR
// selects the interrupt-context path, which is a plain load. Foreground
// reads on an unsynchronized ADC also advance the scan by one step, after
// the load, so both paths return the same value for the same cache state.
// Reading a pin that was never initialized returns -1.
func (s *AnalogSampler) Read(pin Pin, fromISR bool) int {
	slot, ok := s.slotOf(pin)
	if !ok {
		return -1
	}
	if fromISR {
		return int(atomic.LoadUint32(&s.values[slot]))
	}
	state := disableInterrupts()
	value := atomic.LoadUint32(&s.values[slot])
	restoreInterrupts(state)
	if !s.synchronized {
		s.Scan()
	}
	return int(value)
}

// Scan advances the round-robin conversion cycle by at most one step:
// it collects a finished conversion and starts the next one. It never
// waits on the ADC, so it is safe inside the signal ISR.
func (s *AnalogSampler) Scan() {
	if s.waiting {
		value, done := s.driver.ConversionDone()
		if !done {
			return
		}
		atomic.StoreUint32(&s.values[s.current], uint32(value))
		s.waiting = false
		s.current = (s.current + 1) % MaxAnalogPins
	}

	adcPins := s.usedPins &^ s.sourcePins
	if adcPins == 0 {
		return
	}
	for i := uint8(0); i < MaxAnalogPins; i++ {
		slot := (s.current + i) % MaxAnalogPins
		if adcPins&(1<<slot) == 0 {
			continue
		}
		s.current = slot
		s.driver.StartConversion(s.channels[slot])
		s.waiting = true
		return
	}
}

// Poll is the foreground entry point: it advances unsynchronized ADC
// scanning and samples every attached external source.
func (s *AnalogSampler) Poll() {
	if !s.synchronized {
		s.Scan()
	}
	sources := s.sourcePins
	for slot := 0; slot < MaxAnalogPins; slot++ {
		if sources&(1<<slot) == 0 {
			continue
		}
		value, err := s.sources[slot].Sample()
		if err != nil {
			DebugPrintln("[ADC] source on pin " + itoa(int(s.pins[slot])) + ": " + err.Error())
			continue
		}
		atomic.StoreUint32(&s.values[slot], uint32(value))
	}
}

// Pins returns the initialized pins in slot order.
func (s *AnalogSampler) Pins() []Pin {
	var pins []Pin
	used := s.usedPins
	for slot := 0; slot < MaxAnalogPins; slot++ {
		if used&(1<<slot) != 0 {
			pins = append(pins, s.pins[slot])
		}
	}
	return pins
}

func (s *AnalogSampler) slotOf(pin Pin) (int, bool) {
	used := s.usedPins
	for slot := 0; slot < MaxAnalogPins; slot++ {
		if used&(1<<slot) != 0 && s.pins[slot] == pin {
			return slot, true
		}
	}
	return 0, false
}

func (s *AnalogSampler) freeSlot() (int, bool) {
	for slot := 0; slot < MaxAnalogPins; slot++ {
		if s.usedPins&(1<<slot) == 0 {
			return slot, true
		}
	}
	return 0, false
}
