package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"dccwave/console"
	"dccwave/core"
	"dccwave/host/server"
	"dccwave/sim"
)

const (
	projectName        = "dccwave simulator"
	defaultHTTPPort    = 8080
	defaultConsolePort = 2560
)

var (
	projectVersion = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var profilePath string
	var host string
	var httpPort int
	var consolePort int
	var step time.Duration

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&profilePath, "profile", "p", "", "YAML board profile (default: ATmega2560 with motor shield)")
	pflag.StringVar(&host, "host", "127.0.0.1", "Host address the servers listen on")
	pflag.IntVar(&httpPort, "port", defaultHTTPPort, "Port the HTTP server listens on")
	pflag.IntVar(&consolePort, "console-port", defaultConsolePort, "Port of the TCP command console (0 disables it)")
	pflag.DurationVar(&step, "step", 10*time.Millisecond, "Simulation slice run between foreground passes")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)
	core.SetDebugWriter(func(s string) { logger.Debug().Msg(s) })
	core.SetDebugEnabled(level <= zerolog.DebugLevel)
	console.Version = projectVersion

	profile := sim.DefaultProfile()
	if profilePath != "" {
		if profile, err = sim.LoadProfileFile(profilePath); err != nil {
			Exitf("Failed to load profile: %v\n", err)
		}
	}

	st, err := sim.NewStation(profile, logger)
	if err != nil {
		Exitf("Failed to initialize station: %v\n", err)
	}
	st.Begin()

	httpServer := server.New(server.Config{Host: host, Port: httpPort}, logger, stationTarget{st})

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s) board %s, %s free\n",
		projectName, projectVersion, profile.Name, humanize.IBytes(uint64(profile.FreeMemory)))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Run(ctx, step) })
	g.Go(func() error { return httpServer.Run(ctx) })
	if consolePort != 0 {
		g.Go(func() error { return serveConsole(ctx, st, host, consolePort, logger) })
	}
	if err := g.Wait(); err != nil {
		Exitf("Simulator run failed: %#v", err)
	}
}

// serveConsole accepts TCP console connections until ctx is canceled.
func serveConsole(ctx context.Context, st *sim.Station, host string, port int, log zerolog.Logger) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return maskAny(err)
	}
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	log.Debug().Str("address", addr).Msg("Serving console")
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return maskAny(err)
		}
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Console connected")
		go func() {
			if err := st.ServeConsole(ctx, conn); err != nil {
				log.Warn().Err(err).Msg("Console connection failed")
			}
			conn.Close()
		}()
	}
}

// stationTarget adapts a simulated station to the HTTP server.
type stationTarget struct {
	st *sim.Station
}

func (t stationTarget) Status() server.Status {
	var s server.Status
	t.st.Board.Do(func() {
		var mac [6]byte
		t.st.Timer.SimulatedMACAddress(&mac)
		free, ok := t.st.Timer.SampledMinimumFreeMemory()
		if !ok {
			free = -1
		}
		s = server.Status{
			Name:       t.st.Profile.Name,
			MAC:        core.FormatMAC(mac),
			FreeMemory: free,
			Uptime:     t.st.Timer.Uptime(),
			ISR:        t.st.Timer.Stats(),
			PWMActive:  t.st.Timer.PWMActive(),
		}
		for _, pin := range t.st.Sampler.Pins() {
			s.Analog = append(s.Analog, server.AnalogReading{Pin: pin, Value: t.st.Sampler.Read(pin, true)})
		}
	})
	return s
}

func (t stationTarget) Execute(cmd string) []string {
	return t.st.Execute(cmd)
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
