package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"dccwave/core"
	"dccwave/host/serial"
	"dccwave/host/station"
)

var errQuit = errors.New("quit")

func main() {
	var levelFlag string
	var device string
	var baud int
	var timeout time.Duration

	pflag.StringVarP(&levelFlag, "level", "l", "warn", "Set log level")
	pflag.StringVarP(&device, "device", "d", "/dev/ttyACM0", "Serial device path, or tcp:host:port for a simulator console")
	pflag.IntVar(&baud, "baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	pflag.DurationVar(&timeout, "timeout", station.DefaultTimeout, "Time to wait for a reply")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	port, err := open(device, baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	client := station.NewClient(port, logger)
	client.Timeout = timeout

	fmt.Printf("Connected to %s\n", device)
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return repl(ctx, client, os.Stdin, os.Stdout)
	})
	if err := g.Wait(); err != nil && err != errQuit {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// open connects to a serial device or, for tcp:host:port, a simulator.
func open(device string, baud int) (io.ReadWriteCloser, error) {
	if addr, ok := strings.CutPrefix(device, "tcp:"); ok {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to dial %s", addr)
		}
		return conn, nil
	}
	cfg := serial.DefaultConfig(device)
	cfg.Baud = baud
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return port, nil
}

func repl(ctx context.Context, client *station.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		words, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if err := runCommand(ctx, client, words, out); err != nil {
			if err == errQuit {
				fmt.Fprintln(out, "Goodbye!")
				return errQuit
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func runCommand(ctx context.Context, client *station.Client, words []string, out io.Writer) error {
	switch strings.ToLower(words[0]) {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp(out)

	case "ram":
		if len(words) > 1 && strings.EqualFold(words[1], "reset") {
			if err := client.ResetFreeMemory(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Watermark reset")
			return nil
		}
		free, err := client.FreeMemory(ctx)
		if err != nil {
			return err
		}
		if free < 0 {
			fmt.Fprintln(out, "Free memory not sampled yet")
			return nil
		}
		fmt.Fprintf(out, "Minimum free memory: %s (%d bytes)\n", humanize.IBytes(uint64(free)), free)

	case "mac":
		mac, err := client.MAC(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "MAC: %s\n", mac)

	case "anin":
		if len(words) != 2 {
			return errors.New("usage: anin <pin>")
		}
		pin, err := strconv.ParseUint(words[1], 10, 8)
		if err != nil {
			return errors.Wrap(err, "invalid pin")
		}
		value, err := client.AnalogRead(ctx, core.Pin(pin))
		if err != nil {
			return err
		}
		if value < 0 {
			fmt.Fprintf(out, "Pin %d is not sampled\n", pin)
			return nil
		}
		fmt.Fprintf(out, "Pin %d: %d\n", pin, value)

	case "timer":
		st, err := client.TimerStats(ctx)
		if err != nil {
			return err
		}
		uptime := time.Duration(st.Count) * core.HalfCycleUS * time.Microsecond
		fmt.Fprintf(out, "Interrupts: %s (%s of waveform)\n", humanize.Comma(int64(st.Count)), uptime.Truncate(time.Millisecond))
		fmt.Fprintf(out, "Longest ISR: %d of %d ticks, overruns: %d\n", st.MaxTicks, st.PeriodTicks, st.Overruns)

	default:
		// Anything else goes to the station verbatim.
		frames, err := client.Command(ctx, strings.Join(words, " "))
		for _, f := range frames {
			fmt.Fprintln(out, f)
		}
		return err
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help           - Show this help message")
	fmt.Fprintln(out, "  ram [reset]    - Show or reset the free memory watermark")
	fmt.Fprintln(out, "  mac            - Show the station's MAC address")
	fmt.Fprintln(out, "  anin <pin>     - Read an analog pin")
	fmt.Fprintln(out, "  timer          - Show signal interrupt statistics")
	fmt.Fprintln(out, "  <anything>     - Send a raw console command, e.g. D HELP")
	fmt.Fprintln(out, "  quit/exit/q    - Exit the program")
	fmt.Fprintln(out)
}
