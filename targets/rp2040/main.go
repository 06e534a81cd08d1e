//go:build tinygo && rp2040

package main

import (
	"machine"
	"time"

	"dccwave/console"
	"dccwave/core"
)

// Current sense inputs of the two motor driver channels.
var senseADCPins = []core.Pin{26, 27}

var (
	// Debug counters
	consoleErrors uint32
	loopPanics    uint32

	level bool
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	// machine.Serial is USB CDC on RP2040
	machine.Serial.Configure(machine.UARTConfig{})
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})
	core.SetDebugEnabled(true)
	core.SampleHeap()

	gpio := &rpGPIODriver{}
	timer := core.NewSignalTimer(newSignalBackend(machine.CPUFrequency()))
	core.InstallSignalTimer(timer)

	sampler := core.NewAnalogSampler(newADCDriver())
	core.InstallAnalogSampler(sampler)
	timer.AttachSampler(sampler)

	for _, pin := range senseADCPins {
		if _, err := sampler.Init(pin); err != nil {
			core.Fatal(err)
		}
	}
	if src, err := newINA260Source(); err == nil {
		if _, err := sampler.AttachSource(currentSensePin, src); err != nil {
			core.DebugPrintln("[BOOT] current sensor: " + err.Error())
		}
	} else {
		core.DebugPrintln("[BOOT] " + err.Error())
	}

	tracks, err := core.NewTrackSet(timer, gpio,
		core.TrackConfig{Name: "main", Pin: core.Pin(signalPinA), PWM: true},
		core.TrackConfig{Name: "prog", Pin: core.Pin(signalPinB), PWM: true},
	)
	if err != nil {
		core.Fatal(err)
	}

	// Continuous DCC one-bits until a packet generator is attached.
	timer.Begin(func() {
		level = !level
		tracks.Drive(level)
	})

	reg := console.NewRegistry()
	console.RegisterDiagnostics(reg, core.MustSignalTimer(), core.MustAnalogSampler())
	reg.Register("D REBOOT", "", func(args []string, r *console.Reply) error {
		r.OK()
		tracks.Close()
		reboot()
		return nil
	})
	con := console.New(reg, machine.Serial)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopPanics++
				}
			}()

			for machine.Serial.Buffered() > 0 {
				b, err := machine.Serial.ReadByte()
				if err != nil {
					consoleErrors++
					break
				}
				if _, err := con.Write([]byte{b}); err != nil {
					consoleErrors++
					break
				}
			}
			con.Process()

			sampler.Poll()
			core.SampleHeap()
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// reboot uses a watchdog reset, which also re-enumerates USB.
func reboot() {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
		return
	}
	if err := machine.Watchdog.Start(); err != nil {
		return
	}
	for {
		time.Sleep(1 * time.Millisecond)
	}
}
