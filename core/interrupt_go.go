//go:build !tinygo

package core

import "sync/atomic"

// interruptState is a placeholder for interrupt.State on regular Go.
type interruptState uintptr

// interruptDepth counts nested disableInterrupts calls so host builds can
// check the "interrupts disabled" preconditions.
//
// The count is process wide, like the mask of a single-core MCU: a section
// masked on one goroutine satisfies the check on every other. The check is
// only as strong as that model, so host code that masks must run as one
// CPU. The simulator does all station work under the Board lock, and core
// tests do not call t.Parallel.
var interruptDepth int32

// disableInterrupts marks interrupts as masked (for testing)
func disableInterrupts() interruptState {
	atomic.AddInt32(&interruptDepth, 1)
	return 0
}

// restoreInterrupts undoes one disableInterrupts call
func restoreInterrupts(state interruptState) {
	atomic.AddInt32(&interruptDepth, -1)
}

func interruptsDisabled() bool {
	return atomic.LoadInt32(&interruptDepth) > 0
}
