package core

// TrackConfig describes one track output.
type TrackConfig struct {
	Name string // Display name, e.g. "main" or "prog"
	Pin  Pin    // Signal pin driving the motor driver
	PWM  bool   // Switch the pin with the timer's duty cycle instead of software
}

// TrackSet drives the signal pins of all configured tracks from the ISR.
//
// PWM switching lands half a period after software switching, so every
// track in a set must use the same method or joined tracks drift apart.
// NewTrackSet rejects mixed configurations before the waveform starts.
type TrackSet struct {
	timer  *SignalTimer
	gpio   GPIODriver
	tracks []TrackConfig
	pwm    bool
}

// NewTrackSet validates tracks against the timer's PWM capability table and
// configures the software-switched pins.
func NewTrackSet(timer *SignalTimer, gpio GPIODriver, tracks ...TrackConfig) (*TrackSet, error) {
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}
	usePWM := tracks[0].PWM
	for _, tr := range tracks {
		if tr.PWM != usePWM {
			return nil, &TrackError{Track: tr.Name, Err: ErrMixedSwitchMethods}
		}
		if tr.PWM && !timer.IsPWMPin(tr.Pin) {
			return nil, &TrackError{Track: tr.Name, Err: ErrNotPWMPin}
		}
	}
	if !usePWM {
		for _, tr := range tracks {
			if err := gpio.ConfigureOutput(tr.Pin); err != nil {
				return nil, &TrackError{Track: tr.Name, Err: err}
			}
		}
	}
	ts := &TrackSet{
		timer:  timer,
		gpio:   gpio,
		tracks: append([]TrackConfig(nil), tracks...),
		pwm:    usePWM,
	}
	return ts, nil
}

// UsesPWM reports whether the set switches pins through the timer.
func (ts *TrackSet) UsesPWM() bool {
	return ts.pwm
}

// Len returns the number of tracks.
func (ts *TrackSet) Len() int {
	return len(ts.tracks)
}

// Tracks returns a copy of the track configuration.
func (ts *TrackSet) Tracks() []TrackConfig {
	return append([]TrackConfig(nil), ts.tracks...)
}

// Set drives track i high or low. Called from the signal ISR.
func (ts *TrackSet) Set(i int, high bool) {
	pin := ts.tracks[i].Pin
	if ts.pwm {
		ts.timer.SetPWM(pin, high)
		return
	}
	ts.gpio.Set(pin, high)
}

// Drive puts every track at the same level. Called from the signal ISR.
func (ts *TrackSet) Drive(high bool) {
	for i := range ts.tracks {
		ts.Set(i, high)
	}
}

// Close releases the outputs: PWM pins are handed back to digital control,
// software pins are driven low.
func (ts *TrackSet) Close() {
	if ts.pwm {
		ts.timer.ClearPWM()
		return
	}
	for _, tr := range ts.tracks {
		ts.gpio.Set(tr.Pin, false)
	}
}
