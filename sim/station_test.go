//go:build !tinygo

package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dccwave/core"
)

const testProfile = `
name: test-board
clock_hz: 16000000
pwm_pins: [11, 12]
free_memory: 3000
isr_cost_us: 10
adc:
  synchronized: true
  latency_us: 20
  channels:
    54: 0
    55: 1
  values:
    54: 17
    55: 9
tracks:
  - name: main
    pin: 12
    pwm: true
  - name: prog
    pin: 11
    pwm: true
`

func newTestStation(t *testing.T, p Profile) *Station {
	t.Helper()
	s, err := NewStation(p, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { core.SetFreeMemory(core.DefaultFreeMemory) })
	return s
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)

	assert.Equal(t, "test-board", p.Name)
	assert.Equal(t, []core.Pin{11, 12}, p.PWMPinList())
	assert.Equal(t, []core.Pin{54, 55}, p.AnalogPins())
	assert.Equal(t, uint16(17), p.ADC.Values[54])
	assert.Len(t, p.TrackConfigs(), 2)
	// Omitted fields take the default board's values.
	assert.NotEmpty(t, p.UniqueID)
	assert.Equal(t, uint8(core.DefaultStackAllowance), p.StackReserve)
}

func TestParseProfileErrors(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"malformed", "clock_hz: [1"},
		{"clock too slow", "clock_hz: 1000"},
		{"odd half-cycle ticks", "clock_hz: 12500000"},
		{"fractional half-cycle ticks", "clock_hz: 14745600"},
		{"pwm pin out of range", "pwm_pins: [200]"},
		{"adc channel out of range", "adc:\n  channels:\n    54: 40\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestStationInitBaselines(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)
	s := newTestStation(t, p)

	base, ok := s.Baseline(54)
	require.True(t, ok)
	assert.Equal(t, 17, base)
	assert.Equal(t, 17, s.Sampler.Read(54, true))
	assert.Equal(t, 9, s.Sampler.Read(55, true))
	assert.Equal(t, -1, s.Sampler.Read(56, true))
}

func TestStationSynchronizedSampling(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)
	s := newTestStation(t, p)
	s.Begin()

	require.NoError(t, s.ADC.SetValue(54, 400))
	require.NoError(t, s.ADC.SetValue(55, 300))
	s.Board.AdvanceTime(2 * time.Millisecond)

	assert.Equal(t, 400, s.Sampler.Read(54, true))
	var fg int
	s.Board.Do(func() { fg = s.Sampler.Read(55, false) })
	assert.Equal(t, 300, fg)

	peak, ok := s.Peak(54)
	require.True(t, ok)
	assert.Equal(t, 400, peak)

	// Pins cannot be added once the ISR owns the converter.
	_, err = s.Sampler.Init(56)
	assert.ErrorIs(t, err, core.ErrSamplerRunning)
}

func TestStationUnsynchronizedSampling(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)
	p.ADC.Synchronized = false
	s := newTestStation(t, p)
	s.Begin()

	require.NoError(t, s.ADC.SetValue(54, 250))
	// Without foreground polling the ISR only ever sees the baseline.
	s.Board.AdvanceTime(time.Millisecond)
	assert.Equal(t, 17, s.Sampler.Read(54, true))

	for i := 0; i < 4; i++ {
		s.Foreground()
		s.Board.AdvanceTime(100 * time.Microsecond)
	}
	assert.Equal(t, 250, s.Sampler.Read(54, true))
}

func TestStationWatermark(t *testing.T) {
	p, err := ParseProfile([]byte(testProfile))
	require.NoError(t, err)
	s := newTestStation(t, p)
	assert.Equal(t, math.MaxInt32, s.Timer.MinimumFreeMemory())

	s.Begin()
	s.Board.AdvanceTime(time.Millisecond)
	assert.Equal(t, 3000-core.DefaultStackAllowance, s.Timer.MinimumFreeMemory())

	core.SetFreeMemory(2500)
	s.Board.AdvanceTime(time.Millisecond)
	core.SetFreeMemory(6000)
	s.Board.AdvanceTime(time.Millisecond)
	assert.Equal(t, 2500-core.DefaultStackAllowance, s.Timer.MinimumFreeMemory())
}

func TestStationRejectsMixedTracks(t *testing.T) {
	p := DefaultProfile()
	p.Tracks = []TrackConfig{
		{Name: "main", Pin: 12, PWM: true},
		{Name: "prog", Pin: 4},
	}
	_, err := NewStation(p, zerolog.Nop())
	assert.ErrorIs(t, err, core.ErrMixedSwitchMethods)
}

func TestStationRunStopsOnCancel(t *testing.T) {
	s := newTestStation(t, DefaultProfile())
	s.Begin()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx, 5*time.Millisecond))

	var count uint32
	s.Board.Do(func() { count = s.Timer.Stats().Count })
	assert.NotZero(t, count)
	assert.False(t, s.Board.Level(11))
	assert.False(t, s.Board.Level(12))
}
