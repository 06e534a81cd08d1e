package core

// HalfCycleUS is the length of one DCC half-cycle in microseconds. Both the
// software-toggled and the PWM-switched track outputs run on this period.
const HalfCycleUS = 58

// PeriodTicks converts the half-cycle to ticks of a timer clocked at freqHz,
// rounding down when the half-cycle is not a whole number of ticks.
func PeriodTicks(freqHz uint32) uint32 {
	return TimerFromUS(HalfCycleUS, freqHz)
}

// PeriodExact reports whether freqHz can generate the half-cycle without
// drift on a phase-correct counter: a whole, even number of ticks.
func PeriodExact(freqHz uint32) bool {
	if uint64(freqHz)*HalfCycleUS%1000000 != 0 {
		return false
	}
	return PeriodTicks(freqHz)&1 == 0
}

// ClockCycles returns the TOP value for a phase-correct counter clocked at
// freqHz. The counter runs up to TOP and back down, so one full sweep is a
// half-cycle.
func ClockCycles(freqHz uint32) uint32 {
	return PeriodTicks(freqHz) >> 1
}

// TimerFromUS converts microseconds to ticks of a timer clocked at freqHz
func TimerFromUS(us, freqHz uint32) uint32 {
	return uint32(uint64(us) * uint64(freqHz) / 1000000)
}

// TimerToUS converts ticks of a timer clocked at freqHz to microseconds
func TimerToUS(ticks, freqHz uint32) uint32 {
	if freqHz == 0 {
		return 0
	}
	return uint32(uint64(ticks) * 1000000 / uint64(freqHz))
}
