//go:build !tinygo

package sim

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"dccwave/core"
)

var (
	// ErrTimerClaimed is returned by Start when the timer is already running.
	ErrTimerClaimed = errors.New("signal timer already claimed")
	// ErrInvalidPin is returned for pins outside the simulated board.
	ErrInvalidPin = errors.New("invalid pin")
)

// MaxPin is the highest pin number on the simulated board.
const MaxPin = 69

// Edge is one recorded level change on a pin.
type Edge struct {
	At   uint64 // Virtual tick of the change
	High bool
}

// Board simulates the signal timer hardware of a DCC command station.
//
// The timer is modelled as a phase-correct counter: it counts up to TOP and
// back, so one sweep is a half-cycle, and it interrupts at the wrap. PWM
// compare registers are double-buffered and latch at the wrap, just before
// the interrupt, so a compare written by the ISR shows on the pin one
// half-cycle after a pin the ISR toggles directly. This is the RP2040 PWM
// slice behaviour.
//
// The board lock plays the role of the CPU: the ISR and foreground code
// passed to Do never run at the same time.
type Board struct {
	mu  sync.Mutex
	log zerolog.Logger

	clockHz uint32
	top     uint32
	period  uint32
	now     uint64
	spent   uint32 // ticks consumed by the running ISR
	queue   eventQueue

	pwmPins    core.PWMPinTable
	compareBuf map[core.Pin]bool
	pwmEnabled bool

	outputs map[core.Pin]bool
	levels  map[core.Pin]bool
	edges   map[core.Pin][]Edge

	uid     []byte
	isr     func()
	started bool
	resets  int

	bottom Event
}

// NewBoard creates a board with the given timer clock and PWM pins.
func NewBoard(clockHz uint32, uid []byte, log zerolog.Logger, pwmPins ...core.Pin) *Board {
	return &Board{
		log:        log.With().Str("component", "sim.board").Logger(),
		clockHz:    clockHz,
		top:        core.ClockCycles(clockHz),
		pwmPins:    core.NewPWMPinTable(pwmPins...),
		compareBuf: make(map[core.Pin]bool),
		outputs:    make(map[core.Pin]bool),
		levels:     make(map[core.Pin]bool),
		edges:      make(map[core.Pin][]Edge),
		uid:        append([]byte(nil), uid...),
	}
}

// Start claims the timer and schedules the first interrupt one period out.
func (b *Board) Start(periodTicks uint32, isr func()) error {
	if b.started {
		return errors.WithStack(ErrTimerClaimed)
	}
	if periodTicks != 2*b.top {
		return errors.Errorf("period %d ticks does not match phase-correct TOP %d", periodTicks, b.top)
	}
	b.started = true
	b.period = periodTicks
	b.isr = isr

	b.bottom = Event{WakeTime: b.now + uint64(periodTicks), Handler: b.onWrap}
	b.queue.schedule(&b.bottom)
	b.log.Debug().Uint32("period", periodTicks).Uint32("top", b.top).Msg("Timer started")
	return nil
}

// onWrap latches the double-buffered compare values onto the PWM pins,
// then fires the timer interrupt.
func (b *Board) onWrap(e *Event) uint8 {
	b.spent = 0
	if b.pwmEnabled {
		for pin, high := range b.compareBuf {
			b.drive(pin, high)
		}
	}
	b.isr()
	b.spent = 0
	e.WakeTime += uint64(b.period)
	return SF_RESCHEDULE
}

// ClockHz returns the timer clock frequency.
func (b *Board) ClockHz() uint32 {
	return b.clockHz
}

// Ticks returns the virtual clock, including time spent in the current ISR.
func (b *Board) Ticks() uint32 {
	return uint32(b.now + uint64(b.spent))
}

// Spend models ISR work by consuming ticks inside the running interrupt.
func (b *Board) Spend(ticks uint32) {
	b.spent += ticks
}

// PWMPins returns the board's PWM capability table.
func (b *Board) PWMPins() core.PWMPinTable {
	return b.pwmPins
}

// SetCompare loads the compare buffer for pin; it takes effect at the next wrap.
func (b *Board) SetCompare(pin core.Pin, high bool) {
	b.compareBuf[pin] = high
	b.pwmEnabled = true
}

// ReleasePWM disconnects the compare outputs and leaves the pins low.
func (b *Board) ReleasePWM() {
	if !b.pwmEnabled {
		return
	}
	b.pwmEnabled = false
	for pin := range b.compareBuf {
		b.drive(pin, false)
	}
	b.compareBuf = make(map[core.Pin]bool)
}

// UniqueID returns the simulated chip ID.
func (b *Board) UniqueID() []byte {
	return b.uid
}

// Reset clears the compare buffers.
func (b *Board) Reset() {
	b.compareBuf = make(map[core.Pin]bool)
	b.resets++
}

// ConfigureOutput makes pin a software-driven output.
func (b *Board) ConfigureOutput(pin core.Pin) error {
	if pin > MaxPin {
		return errors.Wrapf(ErrInvalidPin, "pin %d", pin)
	}
	b.outputs[pin] = true
	return nil
}

// Set drives a software output pin immediately.
func (b *Board) Set(pin core.Pin, high bool) {
	if !b.outputs[pin] {
		return
	}
	b.drive(pin, high)
}

func (b *Board) drive(pin core.Pin, high bool) {
	if b.levels[pin] == high {
		return
	}
	b.levels[pin] = high
	b.edges[pin] = append(b.edges[pin], Edge{At: b.now + uint64(b.spent), High: high})
}

// Level returns the physical level of pin.
func (b *Board) Level(pin core.Pin) bool {
	return b.levels[pin]
}

// Edges returns the recorded level changes of pin.
func (b *Board) Edges(pin core.Pin) []Edge {
	return append([]Edge(nil), b.edges[pin]...)
}

// ClearEdges drops all recorded edges.
func (b *Board) ClearEdges() {
	b.edges = make(map[core.Pin][]Edge)
}

// Now returns the virtual clock in ticks.
func (b *Board) Now() uint64 {
	return b.now
}

// Advance runs the board for ticks, firing every event that falls due.
func (b *Board) Advance(ticks uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(ticks)
}

func (b *Board) advance(ticks uint64) {
	end := b.now + ticks
	for {
		wake, ok := b.queue.nextWake()
		if !ok || wake > end {
			break
		}
		b.now = wake
		for e := b.queue.popDue(b.now); e != nil; e = b.queue.popDue(b.now) {
			b.queue.run(e)
		}
	}
	b.now = end
}

// AdvanceTime runs the board for the given virtual duration.
func (b *Board) AdvanceTime(d time.Duration) {
	b.Advance(b.DurationToTicks(d))
}

// DurationToTicks converts a duration to timer ticks.
func (b *Board) DurationToTicks(d time.Duration) uint64 {
	return uint64(d) * uint64(b.clockHz) / uint64(time.Second)
}

// Do runs fn as foreground code, never concurrently with the ISR.
func (b *Board) Do(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}
