package console

import (
	"strconv"
	"strings"

	"dccwave/core"
)

// Version is reported by the status command.
var Version = "dev"

// freeMemoryText reports the watermark, or -1 before the first interrupt
// has sampled it.
func freeMemoryText(timer *core.SignalTimer) string {
	free, ok := timer.SampledMinimumFreeMemory()
	if !ok {
		free = -1
	}
	return "Free memory=" + strconv.Itoa(free)
}

// RegisterDiagnostics adds the status and diagnostic commands for timer and
// sampler. sampler may be nil on boards without analog inputs.
func RegisterDiagnostics(reg *Registry, timer *core.SignalTimer, sampler *core.AnalogSampler) {
	reg.Register("s", "", func(args []string, r *Reply) error {
		r.Frame("<iDCCWAVE V-" + Version + " / uptime " + strconv.FormatInt(int64(timer.Uptime().Seconds()), 10) + "s>")
		r.Info(freeMemoryText(timer))
		return nil
	})

	reg.Register("D RAM", "", func(args []string, r *Reply) error {
		if len(args) != 0 {
			return ErrBadArguments
		}
		r.Info(freeMemoryText(timer))
		return nil
	})

	reg.Register("D RAM RESET", "", func(args []string, r *Reply) error {
		timer.ResetMinimumFreeMemory()
		r.OK()
		return nil
	})

	reg.Register("D MAC", "", func(args []string, r *Reply) error {
		var mac [6]byte
		timer.SimulatedMACAddress(&mac)
		r.Info("MAC=" + core.FormatMAC(mac))
		return nil
	})

	reg.Register("D TIMER", "", func(args []string, r *Reply) error {
		if len(args) != 0 {
			return ErrBadArguments
		}
		st := timer.Stats()
		r.Info("ISR count=" + utoa(st.Count) +
			" max=" + utoa(st.MaxTicks) +
			" overruns=" + utoa(st.Overruns) +
			" period=" + utoa(st.PeriodTicks) +
			" pwm=" + strconv.FormatBool(timer.PWMActive()))
		return nil
	})

	reg.Register("D TIMER RESET", "", func(args []string, r *Reply) error {
		timer.Reset()
		r.OK()
		return nil
	})

	reg.Register("D TRACE", "", func(args []string, r *Reply) error {
		for _, ev := range core.TimingEvents() {
			r.Info(core.EventName(ev.EventType) + " v1=" + utoa(ev.Value1) + " v2=" + utoa(ev.Value2))
		}
		r.OK()
		return nil
	})

	reg.Register("D HELP", "", func(args []string, r *Reply) error {
		for _, line := range strings.Split(strings.TrimSpace(reg.Help()), "\n") {
			r.Info(line)
		}
		return nil
	})

	if sampler == nil {
		return
	}

	reg.Register("D ANIN", "pin", func(args []string, r *Reply) error {
		if len(args) != 1 {
			return ErrBadArguments
		}
		pin, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return ErrBadArguments
		}
		value := sampler.Read(core.Pin(pin), false)
		r.Info("ANIN pin=" + args[0] + " value=" + strconv.Itoa(value))
		return nil
	})

	reg.Register("D ANIN LIST", "", func(args []string, r *Reply) error {
		for _, pin := range sampler.Pins() {
			r.Info("ANIN pin=" + strconv.Itoa(int(pin)) + " value=" + strconv.Itoa(sampler.Read(pin, false)))
		}
		r.OK()
		return nil
	})
}

func utoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
