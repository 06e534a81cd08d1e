//go:build tinygo && rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"

	"dccwave/core"
)

// The DCC signal runs on PWM slice 4. Its wrap interrupt is the signal ISR
// and its two channels (GPIO8 = A, GPIO9 = B) are the PWM-capable pins.
const (
	signalSlice = 4
	signalPinA  = machine.GPIO8
	signalPinB  = machine.GPIO9
)

var errSliceInUse = errors.New("pwm slice 4 already enabled")

// signalBackend drives slice 4 in phase-correct mode so that one count up
// and down lasts exactly one DCC half-cycle.
type signalBackend struct {
	clockHz uint32
	top     uint32
	isr     func()
	pwmOn   [2]bool
}

// activeSignal is read by the wrap handler, which cannot capture state.
var activeSignal *signalBackend

func newSignalBackend(clockHz uint32) *signalBackend {
	return &signalBackend{
		clockHz: clockHz,
		top:     core.ClockCycles(clockHz),
	}
}

// Start programs the slice and enables its wrap interrupt.
func (b *signalBackend) Start(periodTicks uint32, isr func()) error {
	if rp.PWM.CH4_CSR.HasBits(rp.PWM_CH4_CSR_EN) {
		return errSliceInUse
	}
	if b.top == 0 || b.top > 0xffff {
		return errors.New("signal period does not fit the pwm counter")
	}
	b.isr = isr
	activeSignal = b

	rp.PWM.CH4_DIV.Set(1 << rp.PWM_CH4_DIV_INT_Pos)
	// Phase-correct: 2*(TOP+1) cycles per period
	rp.PWM.CH4_TOP.Set(b.top - 1)
	rp.PWM.CH4_CC.Set(0)
	rp.PWM.CH4_CTR.Set(0)
	rp.PWM.CH4_CSR.Set(rp.PWM_CH4_CSR_PH_CORRECT)

	rp.PWM.INTR.Set(1 << signalSlice)
	rp.PWM.INTE.SetBits(1 << signalSlice)
	intr := interrupt.New(rp.IRQ_PWM_IRQ_WRAP, signalWrapHandler)
	intr.SetPriority(0x00)
	intr.Enable()

	rp.PWM.CH4_CSR.SetBits(rp.PWM_CH4_CSR_EN)
	return nil
}

func signalWrapHandler(interrupt.Interrupt) {
	rp.PWM.INTR.Set(1 << signalSlice)
	if activeSignal != nil && activeSignal.isr != nil {
		activeSignal.isr()
	}
}

func (b *signalBackend) ClockHz() uint32 {
	return b.clockHz
}

// Ticks is in slice clock units. The PWM counter itself runs up and down
// and cannot time an ISR.
func (b *signalBackend) Ticks() uint32 {
	return cpuTicks(b.clockHz)
}

func (b *signalBackend) PWMPins() core.PWMPinTable {
	return core.NewPWMPinTable(core.Pin(signalPinA), core.Pin(signalPinB))
}

// SetCompare loads CC for pin. The slice latches CC at the next wrap.
func (b *signalBackend) SetCompare(pin core.Pin, high bool) {
	var level uint32
	if high {
		level = b.top // counter < CC for the whole period
	}
	ch := int(pin) & 1
	if !b.pwmOn[ch] {
		machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinPWM})
		b.pwmOn[ch] = true
	}
	if ch == 0 {
		rp.PWM.CH4_CC.ReplaceBits(level<<rp.PWM_CH4_CC_A_Pos, rp.PWM_CH4_CC_A_Msk, 0)
	} else {
		rp.PWM.CH4_CC.ReplaceBits(level<<rp.PWM_CH4_CC_B_Pos, rp.PWM_CH4_CC_B_Msk, 0)
	}
}

// ReleasePWM hands both pins back to SIO and drives them low. The slice
// keeps running so the ISR continues.
func (b *signalBackend) ReleasePWM() {
	rp.PWM.CH4_CC.Set(0)
	for ch, pin := range [2]machine.Pin{signalPinA, signalPinB} {
		if !b.pwmOn[ch] {
			continue
		}
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
		b.pwmOn[ch] = false
	}
}

func (b *signalBackend) UniqueID() []byte {
	return machine.DeviceID()
}

func (b *signalBackend) Reset() {
	rp.PWM.CH4_CC.Set(0)
}
