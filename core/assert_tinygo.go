//go:build tinygo

package core

// contractViolation is undefined behaviour on hardware; nothing can be
// reported from interrupt context.
func contractViolation(msg string) {}

func assertInterruptsDisabled(op string) {}
