//go:build !tinygo

package sim

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"dccwave/console"
)

// Execute runs one console command, given without its <> delimiters, as
// foreground code and returns the reply frames.
func (s *Station) Execute(cmd string) []string {
	con := console.New(s.Registry, nil)
	var frames []string
	s.Board.Do(func() { frames = con.Execute(cmd) })
	return frames
}

// ServeConsole runs the framed console protocol on conn until ctx is
// canceled or conn fails.
func (s *Station) ServeConsole(ctx context.Context, conn io.ReadWriteCloser) error {
	con := console.New(s.Registry, conn)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.Board.Do(func() {
				data := buf[:n]
				for len(data) > 0 {
					written, _ := con.Write(data)
					con.Process()
					data = data[written:]
				}
			})
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "console read")
		}
	}
}
