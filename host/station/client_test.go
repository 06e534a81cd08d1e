package station

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dccwave/core"
	"dccwave/sim"
)

func newTestClient(t *testing.T) (*Client, *sim.Station) {
	t.Helper()
	st, err := sim.NewStation(sim.DefaultProfile(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { core.SetFreeMemory(core.DefaultFreeMemory) })
	st.Begin()
	st.Board.AdvanceTime(10 * time.Millisecond)

	hostEnd, stationEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(hostEnd, zerolog.Nop())
	client.Quiet = 20 * time.Millisecond

	done := make(chan struct{}, 2)
	go func() {
		st.ServeConsole(ctx, stationEnd)
		done <- struct{}{}
	}()
	go func() {
		client.Run(ctx)
		done <- struct{}{}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		<-done
	})
	return client, st
}

func TestClientQueries(t *testing.T) {
	client, st := newTestClient(t)
	ctx := context.Background()

	free, err := client.FreeMemory(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Timer.MinimumFreeMemory(), free)

	mac, err := client.MAC(ctx)
	require.NoError(t, err)
	var expected [6]byte
	st.Timer.SimulatedMACAddress(&expected)
	assert.Equal(t, core.FormatMAC(expected), mac)

	value, err := client.AnalogRead(ctx, 54)
	require.NoError(t, err)
	assert.Equal(t, 0, value)

	value, err = client.AnalogRead(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, -1, value)

	stats, err := client.TimerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(928), stats.PeriodTicks)
	assert.NotZero(t, stats.Count)
}

func TestClientResetFreeMemory(t *testing.T) {
	client, st := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.ResetFreeMemory(ctx))
	free, err := client.FreeMemory(ctx)
	require.NoError(t, err)
	// Nothing has run since the reset, so there is no sample yet.
	assert.Equal(t, -1, free)

	st.Board.AdvanceTime(time.Millisecond)
	free, err = client.FreeMemory(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.Timer.MinimumFreeMemory(), free)
	assert.Equal(t, core.DefaultFreeMemory-core.DefaultStackAllowance, free)
}

func TestClientRejected(t *testing.T) {
	client, _ := newTestClient(t)

	frames, err := client.Command(context.Background(), "Q NOPE")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, []string{"<X>"}, frames)
}

func TestClientMultiFrameReply(t *testing.T) {
	client, _ := newTestClient(t)

	frames, err := client.Command(context.Background(), "D ANIN LIST")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"<* ANIN pin=54 value=0 *>",
		"<* ANIN pin=55 value=0 *>",
		"<O>",
	}, frames)
}

func TestClientNoReply(t *testing.T) {
	hostEnd, deviceEnd := net.Pipe()
	defer deviceEnd.Close()
	client := NewClient(hostEnd, zerolog.Nop())
	client.Timeout = 20 * time.Millisecond

	// Swallow the command without answering.
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := deviceEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	_, err := client.Command(ctx, "D RAM")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestParseFields(t *testing.T) {
	text, ok := InfoText("<* ISR count=12 max=40 overruns=0 period=928 pwm=true *>")
	require.True(t, ok)
	fields := ParseFields(text)

	count, err := fields.Int("count")
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.Equal(t, "true", fields["pwm"])

	_, err = fields.Int("missing")
	assert.ErrorIs(t, err, ErrUnexpectedReply)

	_, ok = InfoText("<O>")
	assert.False(t, ok)
}
