package core

// GPIODriver drives software-toggled track pins.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin Pin) error

	// Set drives the pin high (true) or low (false). Called from the signal ISR.
	Set(pin Pin, high bool)
}
