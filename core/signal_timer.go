package core

import (
	"math"
	"sync/atomic"
	"time"
)

// InterruptCallback is invoked once per half-cycle from interrupt context.
// It takes no arguments and must not block.
type InterruptCallback func()

// DefaultStackAllowance is the number of bytes the ISR reserves, on top of
// the measured free memory, for stack used by code called after the update.
const DefaultStackAllowance = 22

// ISRStats summarises signal interrupt timing.
type ISRStats struct {
	Count       uint32 // Interrupts handled since Begin
	MaxTicks    uint32 // Longest ISR in timer ticks
	Overruns    uint32 // ISRs that took a full period or longer
	PeriodTicks uint32 // Configured half-cycle period in ticks
}

// SignalTimer owns the single hardware timer that drives the DCC waveform.
// One instance exists per device; it is created at boot and never released.
type SignalTimer struct {
	backend SignalBackend
	pwmPins PWMPinTable
	period  uint32

	callback InterruptCallback
	sampler  *AnalogSampler
	started  uint32 // atomic bool

	// StackAllowance is passed to UpdateMinimumFreeMemoryISR on every
	// interrupt. Set before Begin.
	StackAllowance uint8

	pwmActive   bool
	minimumFree int32 // atomic

	isrCount    uint32 // atomic
	isrMaxTicks uint32 // atomic
	isrOverruns uint32 // atomic
}

// NewSignalTimer binds a timer owner to the target's backend. The PWM pin
// table is copied once here and never changes afterwards.
func NewSignalTimer(backend SignalBackend) *SignalTimer {
	return &SignalTimer{
		backend:        backend,
		pwmPins:        backend.PWMPins(),
		period:         PeriodTicks(backend.ClockHz()),
		StackAllowance: DefaultStackAllowance,
		minimumFree:    math.MaxInt32,
	}
}

// Global singleton used by target code.
var signalTimer *SignalTimer

// InstallSignalTimer registers the device's timer owner. Installing a
// second one is fatal.
func InstallSignalTimer(t *SignalTimer) {
	if signalTimer != nil {
		Fatal(ErrAlreadyStarted)
	}
	signalTimer = t
}

// MustSignalTimer returns the installed timer owner or panics if missing.
func MustSignalTimer() *SignalTimer {
	if signalTimer == nil {
		panic("signal timer not installed")
	}
	return signalTimer
}

// AttachSampler hands an ISR-synchronized sampler to the timer so that its
// Scan runs inside the signal interrupt. Must be called before Begin.
func (t *SignalTimer) AttachSampler(s *AnalogSampler) {
	if t.Started() {
		contractViolation("AttachSampler after Begin")
		return
	}
	t.sampler = s
}

// Begin starts the hardware timer so that cb runs every half-cycle.
// It may only be called once; a second call, or a timer that cannot be
// claimed, is fatal.
func (t *SignalTimer) Begin(cb InterruptCallback) {
	if !atomic.CompareAndSwapUint32(&t.started, 0, 1) {
		Fatal(ErrAlreadyStarted)
	}
	t.callback = cb
	if t.sampler != nil && t.sampler.Synchronized() {
		t.sampler.start()
	}
	if err := t.backend.Start(t.period, t.isr); err != nil {
		Fatal(err)
	}
	RecordEvent(EvtBegin, t.period, t.backend.ClockHz())
	DebugPrintln("[TIMER] started period=" + itoa(int(t.period)) + " ticks")
}

// Started reports whether Begin has run.
func (t *SignalTimer) Started() bool {
	return atomic.LoadUint32(&t.started) != 0
}

// isr is the trampoline the backend calls on every timer firing.
func (t *SignalTimer) isr() {
	state := disableInterrupts()
	start := t.backend.Ticks()

	t.callback()
	if t.sampler != nil && t.sampler.synchronized {
		t.sampler.Scan()
	}
	t.UpdateMinimumFreeMemoryISR(t.StackAllowance)

	elapsed := t.backend.Ticks() - start
	atomic.AddUint32(&t.isrCount, 1)
	if elapsed > atomic.LoadUint32(&t.isrMaxTicks) {
		atomic.StoreUint32(&t.isrMaxTicks, elapsed)
	}
	if elapsed >= t.period {
		atomic.AddUint32(&t.isrOverruns, 1)
		RecordEvent(EvtOverrun, elapsed, t.period)
	}
	restoreInterrupts(state)
}

// IsPWMPin reports whether pin can be switched by the hardware duty-cycle
// mechanism on this target.
func (t *SignalTimer) IsPWMPin(pin Pin) bool {
	return t.pwmPins.Has(pin)
}

// SetPWM schedules the next cycle's duty on pin to 100% (high) or 0% (low).
// The output changes one half-cycle after a software-toggled pin would, so
// both tracks of a joined pair must use the same method. The last call
// within a cycle wins.
func (t *SignalTimer) SetPWM(pin Pin, high bool) {
	if !t.pwmPins.Has(pin) {
		contractViolation("SetPWM on pin " + itoa(int(pin)) + " without a PWM channel")
		return
	}
	t.pwmActive = true
	t.backend.SetCompare(pin, high)
}

// ClearPWM returns the PWM pins to plain digital-output control.
func (t *SignalTimer) ClearPWM() {
	t.backend.ReleasePWM()
	if t.pwmActive {
		RecordEvent(EvtClearPWM, 0, 0)
	}
	t.pwmActive = false
}

// PWMActive reports whether any pin is currently under duty-cycle control.
func (t *SignalTimer) PWMActive() bool {
	return t.pwmActive
}

// SimulatedMACAddress derives a locally administered unicast MAC from the
// chip's unique ID. The result is stable for a chip but not globally unique.
func (t *SignalTimer) SimulatedMACAddress(mac *[6]byte) {
	id := t.backend.UniqueID()
	if len(id) == 0 {
		Fatal(ErrNoUniqueID)
	}
	deriveMAC(id, mac)
}

// UpdateMinimumFreeMemoryISR lowers the free memory watermark if current
// free memory, less extraBytes, is below it. extraBytes allows for stack or
// heap that code about to run will use. Interrupts must be disabled.
//
// The watermark only ever goes down: freeing memory later does not raise it.
func (t *SignalTimer) UpdateMinimumFreeMemoryISR(extraBytes uint8) {
	assertInterruptsDisabled("UpdateMinimumFreeMemoryISR")
	spare := int32(freeMemory()) - int32(extraBytes)
	if spare < 0 {
		spare = 0
	}
	if spare < atomic.LoadInt32(&t.minimumFree) {
		atomic.StoreInt32(&t.minimumFree, spare)
		RecordEvent(EvtWatermark, uint32(spare), 0)
	}
}

// MinimumFreeMemory returns the lowest free memory seen. Safe to call from
// foreground code at any time.
func (t *SignalTimer) MinimumFreeMemory() int {
	return int(atomic.LoadInt32(&t.minimumFree))
}

// SampledMinimumFreeMemory is MinimumFreeMemory for reporting. ok is false
// until an interrupt has recorded a value since boot or the last reset,
// while the watermark still holds its MaxInt32 starting value.
func (t *SignalTimer) SampledMinimumFreeMemory() (free int, ok bool) {
	v := atomic.LoadInt32(&t.minimumFree)
	return int(v), v != math.MaxInt32
}

// ResetMinimumFreeMemory restarts worst-case tracking. Operator action only.
func (t *SignalTimer) ResetMinimumFreeMemory() {
	state := disableInterrupts()
	atomic.StoreInt32(&t.minimumFree, math.MaxInt32)
	restoreInterrupts(state)
}

// Reset clears cached timer state ahead of a configuration change. The free
// memory watermark is kept.
func (t *SignalTimer) Reset() {
	state := disableInterrupts()
	t.ClearPWM()
	t.backend.Reset()
	atomic.StoreUint32(&t.isrMaxTicks, 0)
	atomic.StoreUint32(&t.isrOverruns, 0)
	restoreInterrupts(state)
	RecordEvent(EvtReset, 0, 0)
}

// PeriodTicks returns the half-cycle period in backend clock ticks.
func (t *SignalTimer) PeriodTicks() uint32 {
	return t.period
}

// Stats returns a snapshot of the interrupt timing counters.
func (t *SignalTimer) Stats() ISRStats {
	return ISRStats{
		Count:       atomic.LoadUint32(&t.isrCount),
		MaxTicks:    atomic.LoadUint32(&t.isrMaxTicks),
		Overruns:    atomic.LoadUint32(&t.isrOverruns),
		PeriodTicks: t.period,
	}
}

// Uptime is the time the waveform has been running, counted in half-cycles.
func (t *SignalTimer) Uptime() time.Duration {
	return time.Duration(atomic.LoadUint32(&t.isrCount)) * HalfCycleUS * time.Microsecond
}
