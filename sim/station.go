//go:build !tinygo

package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"dccwave/console"
	"dccwave/core"
)

// Station wires a simulated board to the signal timer, the analog sampler
// and the track outputs, the same way firmware does at boot.
type Station struct {
	Profile Profile
	Board   *Board
	ADC     *ADC
	Timer   *core.SignalTimer
	Sampler *core.AnalogSampler
	Tracks  *core.TrackSet
	// Registry holds the console commands served by Execute and ServeConsole.
	Registry *console.Registry

	log       zerolog.Logger
	isrCost   uint32
	level     bool
	baselines map[core.Pin]int
	peak      []uint32 // atomic, highest reading per analog pin since start
	senses    []core.Pin
}

// NewStation builds the board described by p and initializes every analog
// pin and track. The signal timer is not started yet.
func NewStation(p Profile, log zerolog.Logger) (*Station, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	core.SetFreeMemory(p.FreeMemory)

	board := NewBoard(p.ClockHz, p.UniqueID, log, p.PWMPinList()...)
	adc := NewADC(board, p.ADC.Synchronized, board.DurationToTicks(time.Duration(p.ADC.LatencyUS)*time.Microsecond), p.ADCChannels())
	for pin, raw := range p.ADC.Values {
		if err := adc.SetValue(core.Pin(pin), raw); err != nil {
			return nil, errors.Wrap(err, "adc value")
		}
	}

	timer := core.NewSignalTimer(board)
	timer.StackAllowance = p.StackReserve
	sampler := core.NewAnalogSampler(adc)
	timer.AttachSampler(sampler)

	s := &Station{
		Profile:   p,
		Board:     board,
		ADC:       adc,
		Timer:     timer,
		Sampler:   sampler,
		log:       log.With().Str("component", "sim.station").Logger(),
		isrCost:   uint32(board.DurationToTicks(time.Duration(p.ISRCostUS) * time.Microsecond)),
		baselines: make(map[core.Pin]int),
	}
	for _, pin := range p.AnalogPins() {
		base, err := sampler.Init(pin)
		if err != nil {
			return nil, errors.Wrapf(err, "analog pin %d", pin)
		}
		s.baselines[pin] = base
		s.senses = append(s.senses, pin)
	}
	s.peak = make([]uint32, len(s.senses))

	tracks, err := core.NewTrackSet(timer, board, p.TrackConfigs()...)
	if err != nil {
		return nil, errors.Wrap(err, "tracks")
	}
	s.Tracks = tracks

	s.Registry = console.NewRegistry()
	console.RegisterDiagnostics(s.Registry, timer, sampler)
	return s, nil
}

// Begin starts the signal timer with the station's waveform callback.
func (s *Station) Begin() {
	s.Timer.Begin(s.onInterrupt)
	s.log.Info().
		Uint32("period_ticks", s.Timer.PeriodTicks()).
		Bool("pwm", s.Tracks.UsesPWM()).
		Bool("adc_synchronized", s.Sampler.Synchronized()).
		Msg("Signal timer started")
}

// onInterrupt toggles every track each half-cycle, producing a continuous
// stream of DCC one-bits, and records the peak current sense readings.
func (s *Station) onInterrupt() {
	s.level = !s.level
	s.Tracks.Drive(s.level)
	for i, pin := range s.senses {
		v := s.Sampler.Read(pin, true)
		if v > 0 && uint32(v) > atomic.LoadUint32(&s.peak[i]) {
			atomic.StoreUint32(&s.peak[i], uint32(v))
		}
	}
	s.Board.Spend(s.isrCost)
}

// Baseline returns the zero-current reading taken by Init for pin.
func (s *Station) Baseline(pin core.Pin) (int, bool) {
	v, ok := s.baselines[pin]
	return v, ok
}

// Peak returns the highest reading seen on pin by the ISR.
func (s *Station) Peak(pin core.Pin) (int, bool) {
	for i, p := range s.senses {
		if p == pin {
			return int(atomic.LoadUint32(&s.peak[i])), true
		}
	}
	return 0, false
}

// Foreground runs one pass of the main loop.
func (s *Station) Foreground() {
	s.Board.Do(func() {
		s.Sampler.Poll()
		core.SampleHeap()
	})
}

// Run advances the board in step slices paced against the wall clock, and
// runs the foreground loop between slices, until ctx is canceled.
func (s *Station) Run(ctx context.Context, step time.Duration) error {
	if step <= 0 {
		return errors.Errorf("invalid step %v", step)
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	ticks := s.Board.DurationToTicks(step)
	for {
		select {
		case <-ctx.Done():
			s.Board.Do(s.Tracks.Close)
			s.log.Debug().Msg("Station stopped")
			return nil
		case <-ticker.C:
			s.Board.Advance(ticks)
			s.Foreground()
		}
	}
}
