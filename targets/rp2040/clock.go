//go:build tinygo && rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// The TIMER block counts microseconds from reset in a 64-bit register pair.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// microsSinceBoot reads the 64-bit microsecond counter without latching.
// High is read on both sides of low so a carry between the two reads is
// retried.
func microsSinceBoot() uint64 {
	for {
		hi := timerRAWH.Get()
		lo := timerRAWL.Get()
		if timerRAWH.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// cpuTicks scales the microsecond counter to clockHz. Only differences are
// meaningful: the value wraps every 2^32 ticks, about 34s at 125MHz.
func cpuTicks(clockHz uint32) uint32 {
	return uint32(microsSinceBoot() * uint64(clockHz/1000000))
}
