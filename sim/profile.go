//go:build !tinygo

package sim

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dccwave/core"
)

// Profile describes a simulated command station board.
type Profile struct {
	Name         string        `yaml:"name,omitempty"`
	ClockHz      uint32        `yaml:"clock_hz,omitempty"`
	PWMPins      []uint8       `yaml:"pwm_pins,omitempty"`
	UniqueID     []byte        `yaml:"unique_id,omitempty"`
	FreeMemory   int           `yaml:"free_memory,omitempty"`
	ISRCostUS    uint32        `yaml:"isr_cost_us,omitempty"`
	ADC          ADCProfile    `yaml:"adc"`
	Tracks       []TrackConfig `yaml:"tracks,omitempty"`
	StackReserve uint8         `yaml:"stack_reserve,omitempty"`
}

// ADCProfile configures the simulated converter.
type ADCProfile struct {
	Synchronized bool             `yaml:"synchronized"`
	LatencyUS    uint32           `yaml:"latency_us,omitempty"`
	Channels     map[uint8]uint8  `yaml:"channels,omitempty"` // pin -> channel
	Values       map[uint8]uint16 `yaml:"values,omitempty"`   // pin -> raw reading
}

// TrackConfig is the YAML form of core.TrackConfig.
type TrackConfig struct {
	Name string `yaml:"name"`
	Pin  uint8  `yaml:"pin"`
	PWM  bool   `yaml:"pwm,omitempty"`
}

// DefaultProfile models an ATmega2560 with a Motor Shield: 16MHz timer,
// PWM-capable signal pins 11 and 12, current sense on A0 and A1.
func DefaultProfile() Profile {
	p := Profile{Name: "mega2560"}
	p.applyDefaults()
	return p
}

func (p *Profile) applyDefaults() {
	if p.ClockHz == 0 {
		p.ClockHz = 16000000
	}
	if len(p.PWMPins) == 0 {
		p.PWMPins = []uint8{11, 12}
	}
	if len(p.UniqueID) == 0 {
		p.UniqueID = []byte{0x44, 0x43, 0x43, 0x2d, 0x45, 0x58, 0x01, 0x5c}
	}
	if p.FreeMemory == 0 {
		p.FreeMemory = core.DefaultFreeMemory
	}
	if p.ISRCostUS == 0 {
		p.ISRCostUS = 12
	}
	if p.ADC.LatencyUS == 0 {
		p.ADC.LatencyUS = 104
	}
	if len(p.ADC.Channels) == 0 {
		p.ADC.Channels = map[uint8]uint8{54: 0, 55: 1}
	}
	if len(p.Tracks) == 0 {
		p.Tracks = []TrackConfig{
			{Name: "main", Pin: 12, PWM: true},
			{Name: "prog", Pin: 11, PWM: true},
		}
	}
	if p.StackReserve == 0 {
		p.StackReserve = core.DefaultStackAllowance
	}
}

// Validate checks the profile for values the board cannot model.
func (p Profile) Validate() error {
	if core.ClockCycles(p.ClockHz) == 0 {
		return errors.Errorf("clock_hz %d is too slow for a %dus half-cycle", p.ClockHz, core.HalfCycleUS)
	}
	if !core.PeriodExact(p.ClockHz) {
		return errors.Errorf("clock_hz %d does not divide a %dus half-cycle into an even tick count", p.ClockHz, core.HalfCycleUS)
	}
	for _, pin := range p.PWMPins {
		if pin > MaxPin {
			return errors.Wrapf(ErrInvalidPin, "pwm pin %d", pin)
		}
	}
	for pin, ch := range p.ADC.Channels {
		if ch >= core.MaxAnalogPins {
			return errors.Errorf("adc channel %d for pin %d out of range", ch, pin)
		}
	}
	return nil
}

// LoadProfileFile reads a YAML board profile. Missing fields take the
// default board's values.
func LoadProfileFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrapf(err, "failed to read profile %s", path)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML board profile.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrap(err, "failed to parse profile")
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// PWMPinList returns the PWM pins as core pins.
func (p Profile) PWMPinList() []core.Pin {
	pins := make([]core.Pin, len(p.PWMPins))
	for i, pin := range p.PWMPins {
		pins[i] = core.Pin(pin)
	}
	return pins
}

// AnalogPins returns the configured analog pins in ascending order.
func (p Profile) AnalogPins() []core.Pin {
	pins := make([]core.Pin, 0, len(p.ADC.Channels))
	for pin := range p.ADC.Channels {
		pins = append(pins, core.Pin(pin))
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

// TrackConfigs returns the tracks in core form.
func (p Profile) TrackConfigs() []core.TrackConfig {
	tracks := make([]core.TrackConfig, len(p.Tracks))
	for i, tr := range p.Tracks {
		tracks[i] = core.TrackConfig{Name: tr.Name, Pin: core.Pin(tr.Pin), PWM: tr.PWM}
	}
	return tracks
}

// ADCChannels returns the pin to channel map in core form.
func (p Profile) ADCChannels() map[core.Pin]uint8 {
	m := make(map[core.Pin]uint8, len(p.ADC.Channels))
	for pin, ch := range p.ADC.Channels {
		m[core.Pin(pin)] = ch
	}
	return m
}
