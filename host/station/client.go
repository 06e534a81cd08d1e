// Package station is the host side of the command station console: it
// sends <...> commands over a serial or TCP link and decodes the replies.
package station

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"dccwave/core"
)

const (
	// DefaultTimeout bounds the wait for the first reply frame.
	DefaultTimeout = time.Second
	// DefaultQuiet is how long the link must stay silent after the last
	// frame before a reply is considered complete.
	DefaultQuiet = 50 * time.Millisecond

	eofBackoff = 10 * time.Millisecond
	maxFrame   = 256
)

var (
	// ErrRejected is returned when the station replies <X>.
	ErrRejected = errors.New("command rejected")
	// ErrNoReply is returned when no frame arrives before the timeout.
	ErrNoReply = errors.New("no reply from station")
	// ErrUnexpectedReply is returned when a reply cannot be decoded.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// Client talks to one command station.
type Client struct {
	Timeout time.Duration
	Quiet   time.Duration

	port   io.ReadWriteCloser
	log    zerolog.Logger
	frames chan string
	mu     sync.Mutex
}

// NewClient creates a client on port. Run must be running for replies to
// be received.
func NewClient(port io.ReadWriteCloser, log zerolog.Logger) *Client {
	return &Client{
		Timeout: DefaultTimeout,
		Quiet:   DefaultQuiet,
		port:    port,
		log:     log.With().Str("component", "station.client").Logger(),
		frames:  make(chan string, 64),
	}
}

// Run reads frames from the port until ctx is canceled, then closes it.
// Serial ports report a read timeout as io.EOF, so EOF is retried.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.port.Close()
	}()

	var frame []byte
	inFrame := false
	buf := make([]byte, 64)
	for {
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			switch {
			case b == '<':
				frame = append(frame[:0], b)
				inFrame = true
			case !inFrame:
				// Noise between frames
			case b == '>':
				frame = append(frame, b)
				inFrame = false
				c.deliver(string(frame))
			case len(frame) >= maxFrame:
				inFrame = false
			default:
				frame = append(frame, b)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				time.Sleep(eofBackoff)
				continue
			}
			return errors.Wrap(err, "station read")
		}
	}
}

func (c *Client) deliver(frame string) {
	select {
	case c.frames <- frame:
	default:
		c.log.Warn().Str("frame", frame).Msg("Dropping unsolicited frame")
	}
}

// Command sends cmd, given without its <> delimiters, and returns every
// reply frame. A reply of <X> yields ErrRejected.
func (c *Client) Command(ctx context.Context, cmd string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()
	c.log.Debug().Str("command", cmd).Msg("Sending")
	if _, err := c.port.Write([]byte("<" + cmd + ">")); err != nil {
		return nil, errors.Wrap(err, "station write")
	}

	timeout := time.NewTimer(c.Timeout)
	defer timeout.Stop()
	var frames []string
	select {
	case f := <-c.frames:
		frames = append(frames, f)
	case <-timeout.C:
		return nil, errors.Wrapf(ErrNoReply, "command %q", cmd)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	quiet := time.NewTimer(c.Quiet)
	defer quiet.Stop()
	for {
		select {
		case f := <-c.frames:
			frames = append(frames, f)
			quiet.Reset(c.Quiet)
		case <-quiet.C:
			if len(frames) == 1 && frames[0] == "<X>" {
				return frames, errors.Wrapf(ErrRejected, "command %q", cmd)
			}
			return frames, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) drain() {
	for {
		select {
		case f := <-c.frames:
			c.log.Debug().Str("frame", f).Msg("Discarding stale frame")
		default:
			return
		}
	}
}

// FreeMemory returns the station's free memory watermark, or -1 when no
// interrupt has sampled it since boot or the last reset.
func (c *Client) FreeMemory(ctx context.Context) (int, error) {
	fields, err := c.info(ctx, "D RAM")
	if err != nil {
		return 0, err
	}
	return fields.Int("memory")
}

// ResetFreeMemory restarts the watermark.
func (c *Client) ResetFreeMemory(ctx context.Context) error {
	_, err := c.Command(ctx, "D RAM RESET")
	return err
}

// MAC returns the station's simulated MAC address.
func (c *Client) MAC(ctx context.Context) (string, error) {
	fields, err := c.info(ctx, "D MAC")
	if err != nil {
		return "", err
	}
	mac, ok := fields["MAC"]
	if !ok {
		return "", errors.Wrap(ErrUnexpectedReply, "missing MAC")
	}
	return mac, nil
}

// AnalogRead returns the latest reading of pin, or -1 if the station does
// not sample it.
func (c *Client) AnalogRead(ctx context.Context, pin core.Pin) (int, error) {
	fields, err := c.info(ctx, "D ANIN "+strconv.Itoa(int(pin)))
	if err != nil {
		return 0, err
	}
	return fields.Int("value")
}

// TimerStats returns the signal interrupt counters.
func (c *Client) TimerStats(ctx context.Context) (core.ISRStats, error) {
	fields, err := c.info(ctx, "D TIMER")
	if err != nil {
		return core.ISRStats{}, err
	}
	var st core.ISRStats
	for key, dst := range map[string]*uint32{
		"count":    &st.Count,
		"max":      &st.MaxTicks,
		"overruns": &st.Overruns,
		"period":   &st.PeriodTicks,
	} {
		v, err := fields.Int(key)
		if err != nil {
			return core.ISRStats{}, err
		}
		*dst = uint32(v)
	}
	return st, nil
}

func (c *Client) info(ctx context.Context, cmd string) (Fields, error) {
	frames, err := c.Command(ctx, cmd)
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if text, ok := InfoText(f); ok {
			return ParseFields(text), nil
		}
	}
	return nil, errors.Wrapf(ErrUnexpectedReply, "%q", frames)
}

// InfoText strips the <* *> delimiters of an informational frame.
func InfoText(frame string) (string, bool) {
	if !strings.HasPrefix(frame, "<*") || !strings.HasSuffix(frame, "*>") || len(frame) < 4 {
		return "", false
	}
	return strings.TrimSpace(frame[2 : len(frame)-2]), true
}

// Fields are the key=value words of an informational frame.
type Fields map[string]string

// ParseFields collects every key=value word in text.
func ParseFields(text string) Fields {
	fields := make(Fields)
	for _, word := range strings.Fields(text) {
		if i := strings.IndexByte(word, '='); i > 0 {
			fields[word[:i]] = word[i+1:]
		}
	}
	return fields
}

// Int returns the integer value of key.
func (f Fields) Int(key string) (int, error) {
	s, ok := f[key]
	if !ok {
		return 0, errors.Wrapf(ErrUnexpectedReply, "missing %s", key)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrUnexpectedReply, "%s=%s", key, s)
	}
	return v, nil
}
