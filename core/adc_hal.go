package core

// AnalogDriver is the ADC interface the sampler uses. Platform-specific
// implementations handle the actual conversions.
type AnalogDriver interface {
	// Synchronized reports whether the ADC shares hardware with the signal
	// timer, so conversions must be paced from the signal ISR.
	Synchronized() bool

	// ConfigureChannel prepares pin for analog input and returns its channel.
	ConfigureChannel(pin Pin) (uint8, error)

	// ReadBlocking performs one complete conversion on channel.
	// Only used before sampling starts.
	ReadBlocking(channel uint8) (uint16, error)

	// StartConversion begins a conversion on channel without waiting.
	StartConversion(channel uint8)

	// ConversionDone returns the result of the conversion in flight, if it
	// has completed.
	ConversionDone() (uint16, bool)
}

// AnalogSource is an analog value that lives outside the ADC, such as a
// current monitor on a bus. Sources are only sampled from foreground code.
type AnalogSource interface {
	Sample() (uint16, error)
}
