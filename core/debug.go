package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a signal-timer event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtBegin     = 1 // Begin started the timer; v1=period ticks, v2=clock Hz
	EvtOverrun   = 2 // ISR ran longer than a period; v1=duration, v2=period
	EvtWatermark = 3 // free memory watermark lowered; v1=new value
	EvtClearPWM  = 4 // PWM outputs released
	EvtReset     = 5 // timer state reset
	EvtFatal     = 6 // fatal boot condition
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent captures an event in the ring buffer. It does not allocate
// and is safe to call from the signal ISR.
func RecordEvent(eventType uint8, value1, value2 uint32) {
	state := disableInterrupts()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	restoreInterrupts(state)
}

// EventName returns the display name of an event type.
func EventName(eventType uint8) string {
	switch eventType {
	case EvtBegin:
		return "BEGIN"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtWatermark:
		return "LOW_RAM"
	case EvtClearPWM:
		return "CLEAR_PWM"
	case EvtReset:
		return "RESET"
	case EvtFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// TimingEvents returns the recorded events from oldest to newest.
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	ring := timingRing
	start := timingRingHead
	restoreInterrupts(state)

	var events []TimingEvent
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := ring[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpTimingRing outputs the event ring buffer on the debug writer
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + EventName(evt.EventType) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the event buffer
func ClearTimingRing() {
	state := disableInterrupts()
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
	restoreInterrupts(state)
}
