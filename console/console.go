// Package console implements the diagnostic command channel: text commands
// framed as <...> on a byte stream, e.g. "<D RAM>".
package console

import (
	"errors"
	"io"

	"github.com/google/shlex"
)

const (
	// MaxFrameLen is the longest command text between '<' and '>'.
	MaxFrameLen = 64
	// InputBufferSize is the capacity of the receive buffer.
	InputBufferSize = 256
)

// ErrInputFull is returned by Write when the receive buffer cannot take
// all of the data.
var ErrInputFull = errors.New("console input buffer full")

// Reply collects the response frames of one command.
type Reply struct {
	frames []string
}

// Info appends an informational frame: <* text *>.
func (r *Reply) Info(text string) {
	r.frames = append(r.frames, "<* "+text+" *>")
}

// OK appends the acknowledge frame <O>.
func (r *Reply) OK() {
	r.frames = append(r.frames, "<O>")
}

// Fail appends the error frame <X>.
func (r *Reply) Fail() {
	r.frames = append(r.frames, "<X>")
}

// Frame appends a raw frame; text must carry its own delimiters.
func (r *Reply) Frame(text string) {
	r.frames = append(r.frames, text)
}

// Frames returns the collected frames.
func (r *Reply) Frames() []string {
	return r.frames
}

// Console parses frames from its input and writes replies to out.
type Console struct {
	reg *Registry
	in  *fifo
	out io.Writer

	frame    []byte
	inFrame  bool
	overflow bool
}

// New creates a console dispatching to reg.
func New(reg *Registry, out io.Writer) *Console {
	return &Console{
		reg:   reg,
		in:    newFifo(InputBufferSize),
		out:   out,
		frame: make([]byte, 0, MaxFrameLen),
	}
}

// Write queues received bytes for Process.
func (c *Console) Write(p []byte) (int, error) {
	n := c.in.Write(p)
	if n < len(p) {
		return n, ErrInputFull
	}
	return n, nil
}

// Process parses every complete frame waiting in the input buffer, runs
// the commands and writes their replies. It returns the number of frames
// handled. Bytes outside frames are ignored.
func (c *Console) Process() int {
	handled := 0
	for {
		b, ok := c.in.Pop()
		if !ok {
			return handled
		}
		switch {
		case b == '<':
			c.frame = c.frame[:0]
			c.inFrame = true
			c.overflow = false
		case !c.inFrame:
			// Noise between frames
		case b == '>':
			c.inFrame = false
			var frames []string
			if c.overflow {
				frames = []string{"<X>"}
			} else {
				frames = c.Execute(string(c.frame))
			}
			c.emit(frames)
			handled++
		case len(c.frame) >= MaxFrameLen:
			c.overflow = true
		default:
			c.frame = append(c.frame, b)
		}
	}
}

// Execute runs a single command given without its <> delimiters and
// returns the reply frames. Failed or unknown commands reply <X>.
func (c *Console) Execute(text string) []string {
	var reply Reply
	words, err := shlex.Split(text)
	if err != nil || len(words) == 0 {
		reply.Fail()
		return reply.Frames()
	}
	if err := c.reg.Dispatch(words, &reply); err != nil {
		return []string{"<X>"}
	}
	return reply.Frames()
}

func (c *Console) emit(frames []string) {
	if c.out == nil {
		return
	}
	for _, f := range frames {
		c.out.Write([]byte(f + "\n"))
	}
}
