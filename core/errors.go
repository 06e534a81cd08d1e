package core

import "errors"

var (
	// ErrAlreadyStarted is raised when Begin is called a second time.
	ErrAlreadyStarted = errors.New("signal timer already started")
	// ErrNoUniqueID is raised when the chip offers no unique ID to derive a MAC from.
	ErrNoUniqueID = errors.New("no chip unique id available")
	// ErrSamplerRunning is returned by Init once ISR-synchronized sampling has started.
	ErrSamplerRunning = errors.New("analog sampler already running")
	// ErrTooManyAnalogPins is returned when every sampler slot is taken.
	ErrTooManyAnalogPins = errors.New("too many analog pins")
	// ErrPinInUse is returned when a pin is already claimed by the sampler.
	ErrPinInUse = errors.New("analog pin already in use")
	// ErrMixedSwitchMethods is returned when tracks mix PWM and software switching.
	ErrMixedSwitchMethods = errors.New("tracks must all use the same switching method")
	// ErrNotPWMPin is returned when a PWM track is configured on a pin without a timer channel.
	ErrNotPWMPin = errors.New("pin is not wired to a PWM channel")
	// ErrNoTracks is returned when a track set is created empty.
	ErrNoTracks = errors.New("no tracks configured")
)

// FatalError wraps a boot-time resource failure. There is no recovery path:
// the device cannot run without its waveform timer.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal reports err on the debug writer and panics with a *FatalError.
func Fatal(err error) {
	RecordEvent(EvtFatal, 0, 0)
	if debugPrintln != nil {
		debugPrintln("[FATAL] " + err.Error())
	}
	panic(&FatalError{Err: err})
}

// TrackError ties a configuration error to the track it was found on.
type TrackError struct {
	Track string
	Err   error
}

func (e *TrackError) Error() string {
	return "track " + e.Track + ": " + e.Err.Error()
}

func (e *TrackError) Unwrap() error {
	return e.Err
}
