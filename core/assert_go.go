//go:build !tinygo

package core

// contractViolation reports a programmer error. Host builds panic so tests
// catch misuse.
func contractViolation(msg string) {
	panic("dccwave: contract violation: " + msg)
}

func assertInterruptsDisabled(op string) {
	if !interruptsDisabled() {
		contractViolation(op + " called with interrupts enabled")
	}
}
