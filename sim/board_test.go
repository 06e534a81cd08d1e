//go:build !tinygo

package sim

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dccwave/core"
)

func newTestBoard(pwmPins ...core.Pin) *Board {
	return NewBoard(16000000, []byte{1, 2, 3, 4, 5, 6, 7, 8}, zerolog.Nop(), pwmPins...)
}

func TestCallbackRate(t *testing.T) {
	for _, clockHz := range []uint32{1000000, 16000000, 20000000, 125000000} {
		board := NewBoard(clockHz, []byte{1}, zerolog.Nop())
		timer := core.NewSignalTimer(board)
		calls := 0
		timer.Begin(func() { calls++ })

		board.AdvanceTime(time.Second)

		expected := int(uint64(clockHz) / uint64(core.PeriodTicks(clockHz)))
		assert.InDelta(t, expected, calls, 1, "clock %d", clockHz)
		assert.InDelta(t, 1000000.0/core.HalfCycleUS, calls, 1, "clock %d", clockHz)
		assert.Equal(t, uint32(calls), timer.Stats().Count)
	}
}

func TestStartRejectsSecondClaim(t *testing.T) {
	board := newTestBoard()
	period := core.PeriodTicks(16000000)
	require.NoError(t, board.Start(period, func() {}))
	assert.ErrorIs(t, board.Start(period, func() {}), ErrTimerClaimed)
}

func TestStartRejectsMismatchedPeriod(t *testing.T) {
	board := newTestBoard()
	assert.Error(t, board.Start(1000, func() {}))
}

func TestPWMLagsSoftwareByOneHalfCycle(t *testing.T) {
	period := uint64(core.PeriodTicks(16000000))

	soft := newTestBoard(11)
	softTimer := core.NewSignalTimer(soft)
	softTracks, err := core.NewTrackSet(softTimer, soft, core.TrackConfig{Name: "main", Pin: 3})
	require.NoError(t, err)
	softTimer.Begin(func() { softTracks.Drive(true) })

	hard := newTestBoard(11)
	hardTimer := core.NewSignalTimer(hard)
	hardTracks, err := core.NewTrackSet(hardTimer, hard, core.TrackConfig{Name: "main", Pin: 11, PWM: true})
	require.NoError(t, err)
	hardTimer.Begin(func() { hardTracks.Drive(true) })

	soft.Advance(3 * period)
	hard.Advance(3 * period)

	softEdges := soft.Edges(3)
	hardEdges := hard.Edges(11)
	require.Len(t, softEdges, 1)
	require.Len(t, hardEdges, 1)
	assert.Equal(t, period, softEdges[0].At)
	assert.Equal(t, 2*period, hardEdges[0].At)
	assert.Equal(t, period, hardEdges[0].At-softEdges[0].At)
	assert.Equal(t, time.Duration(core.HalfCycleUS)*time.Microsecond,
		time.Duration(hardEdges[0].At-softEdges[0].At)*time.Second/16000000)
}

func TestCompareLastWriteWins(t *testing.T) {
	board := newTestBoard(11)
	timer := core.NewSignalTimer(board)
	timer.Begin(func() {
		timer.SetPWM(11, true)
		timer.SetPWM(11, false)
	})

	board.Advance(4 * uint64(timer.PeriodTicks()))

	assert.False(t, board.Level(11))
	assert.Empty(t, board.Edges(11))
}

func TestReleasePWMDrivesLow(t *testing.T) {
	board := newTestBoard(11)
	timer := core.NewSignalTimer(board)
	timer.Begin(func() { timer.SetPWM(11, true) })
	board.Advance(2 * uint64(timer.PeriodTicks()))
	require.True(t, board.Level(11))

	board.Do(timer.ClearPWM)
	assert.False(t, board.Level(11))

	// Compare writes after release re-enable the output.
	board.Advance(2 * uint64(timer.PeriodTicks()))
	assert.True(t, board.Level(11))
}

func TestISRCostCountsTowardsOverrun(t *testing.T) {
	board := newTestBoard()
	timer := core.NewSignalTimer(board)
	period := timer.PeriodTicks()
	slow := false
	timer.Begin(func() {
		if slow {
			board.Spend(period + 1)
		} else {
			board.Spend(100)
		}
	})

	board.Advance(uint64(period))
	assert.Equal(t, uint32(0), timer.Stats().Overruns)
	assert.Equal(t, uint32(100), timer.Stats().MaxTicks)

	slow = true
	board.Advance(uint64(period))
	assert.Equal(t, uint32(1), timer.Stats().Overruns)
}

func TestConfigureOutputRejectsUnknownPin(t *testing.T) {
	board := newTestBoard()
	assert.ErrorIs(t, board.ConfigureOutput(MaxPin+1), ErrInvalidPin)
	assert.NoError(t, board.ConfigureOutput(MaxPin))
}

func TestEventQueueOrdersByWakeTime(t *testing.T) {
	var q eventQueue
	var order []int
	mk := func(id int, at uint64) *Event {
		return &Event{WakeTime: at, Handler: func(*Event) uint8 {
			order = append(order, id)
			return SF_DONE
		}}
	}
	q.schedule(mk(1, 30))
	q.schedule(mk(2, 10))
	q.schedule(mk(3, 30))
	q.schedule(mk(4, 20))

	for {
		wake, ok := q.nextWake()
		if !ok {
			break
		}
		for e := q.popDue(wake); e != nil; e = q.popDue(wake) {
			q.run(e)
		}
	}
	assert.Equal(t, []int{2, 4, 1, 3}, order)
}
