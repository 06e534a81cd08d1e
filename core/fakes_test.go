package core

import (
	"errors"
	"sync/atomic"
)

// fakeBackend is a SignalBackend that fires only when the test says so.
type fakeBackend struct {
	clockHz  uint32
	ticks    uint32
	pins     PWMPinTable
	compare  map[Pin]bool
	writes   int
	released int
	resets   int
	id       []byte
	startErr error

	period uint32
	isr    func()
}

func newFakeBackend(pins ...Pin) *fakeBackend {
	return &fakeBackend{
		clockHz: 16000000,
		pins:    NewPWMPinTable(pins...),
		compare: make(map[Pin]bool),
		id:      []byte{0x1e, 0x98, 0x01, 0x55, 0x34, 0x36, 0x30, 0x39, 0x12},
	}
}

func (f *fakeBackend) Start(periodTicks uint32, isr func()) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.period = periodTicks
	f.isr = isr
	return nil
}

func (f *fakeBackend) ClockHz() uint32      { return f.clockHz }
func (f *fakeBackend) Ticks() uint32        { return f.ticks }
func (f *fakeBackend) PWMPins() PWMPinTable { return f.pins }
func (f *fakeBackend) UniqueID() []byte     { return f.id }

func (f *fakeBackend) SetCompare(pin Pin, high bool) {
	f.compare[pin] = high
	f.writes++
}

func (f *fakeBackend) ReleasePWM() {
	f.released++
	f.compare = make(map[Pin]bool)
}

func (f *fakeBackend) Reset() {
	f.resets++
}

// fire runs one timer interrupt.
func (f *fakeBackend) fire() {
	f.isr()
	f.ticks += f.period
}

// fakeADC completes each conversion after latency Scan polls.
type fakeADC struct {
	synchronized bool
	latency      int
	values       map[uint8]uint16
	configErr    error

	started   []uint8
	inflight  uint8
	remaining int
	busy      bool
}

func newFakeADC(synchronized bool) *fakeADC {
	return &fakeADC{
		synchronized: synchronized,
		values:       make(map[uint8]uint16),
	}
}

func (a *fakeADC) Synchronized() bool { return a.synchronized }

func (a *fakeADC) ConfigureChannel(pin Pin) (uint8, error) {
	if a.configErr != nil {
		return 0, a.configErr
	}
	return uint8(pin) % 16, nil
}

func (a *fakeADC) ReadBlocking(channel uint8) (uint16, error) {
	return a.values[channel], nil
}

func (a *fakeADC) StartConversion(channel uint8) {
	a.started = append(a.started, channel)
	a.inflight = channel
	a.remaining = a.latency
	a.busy = true
}

func (a *fakeADC) ConversionDone() (uint16, bool) {
	if !a.busy {
		return 0, false
	}
	if a.remaining > 0 {
		a.remaining--
		return 0, false
	}
	a.busy = false
	return a.values[a.inflight], true
}

// fakeGPIO records software pin levels.
type fakeGPIO struct {
	outputs map[Pin]bool
	levels  map[Pin]bool
	badPin  Pin
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		outputs: make(map[Pin]bool),
		levels:  make(map[Pin]bool),
		badPin:  0xff,
	}
}

var errBadPin = errors.New("bad pin")

func (g *fakeGPIO) ConfigureOutput(pin Pin) error {
	if pin == g.badPin {
		return errBadPin
	}
	g.outputs[pin] = true
	return nil
}

func (g *fakeGPIO) Set(pin Pin, high bool) {
	g.levels[pin] = high
}

// fakeSource is an external analog source.
type fakeSource struct {
	value uint16
	err   error
	calls int
}

func (s *fakeSource) Sample() (uint16, error) {
	s.calls++
	return s.value, s.err
}

// expectFatal runs fn and returns the error it panicked with.
func expectFatal(fn func()) (err error) {
	depth := atomic.LoadInt32(&interruptDepth)
	defer func() {
		// A panic out of a masked section skips restoreInterrupts.
		atomic.StoreInt32(&interruptDepth, depth)
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
			}
		}
	}()
	fn()
	return nil
}

// expectPanic reports whether fn panicked.
func expectPanic(fn func()) (panicked bool) {
	depth := atomic.LoadInt32(&interruptDepth)
	defer func() {
		atomic.StoreInt32(&interruptDepth, depth)
		if recover() != nil {
			panicked = true
		}
	}()
	fn()
	return false
}
