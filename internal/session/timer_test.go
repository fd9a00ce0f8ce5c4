package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTimerStates(t *testing.T) {
	var fired atomic.Int32
	tm := NewTimer(3, func() { fired.Add(1) })
	require.Equal(t, TimerIdle, tm.State())

	// Ticks before Start are ignored.
	require.False(t, tm.Tick())
	require.Equal(t, 3, tm.Remaining())

	ticks := make(chan time.Time)
	tm.Start(ticks)
	require.Equal(t, TimerRunning, tm.State())

	ticks <- time.Now()
	ticks <- time.Now()
	require.Eventually(t, func() bool { return tm.Remaining() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 2, tm.Elapsed())

	ticks <- time.Now()
	require.Eventually(t, func() bool { return tm.State() == TimerExpired }, time.Second, time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
	require.Equal(t, 0, tm.Remaining())
	require.Equal(t, 3, tm.Elapsed())

	// Late ticks never fire again.
	require.True(t, tm.Tick())
	require.True(t, tm.Tick())
	require.Equal(t, int32(1), fired.Load())
	tm.Stop()
	tm.Stop()
}

func TestTimerUntimedStaysIdle(t *testing.T) {
	tm := NewTimer(0, func() { t.Fatal("untimed paper must not expire") })
	tm.Start(nil)
	require.Equal(t, TimerIdle, tm.State())
	require.False(t, tm.Tick())
	tm.Stop()
}

func TestTimerStopHaltsTicking(t *testing.T) {
	tm := NewTimer(10, nil)
	ticks := make(chan time.Time, 1)
	tm.Start(ticks)
	tm.Stop()
	require.Eventually(t, func() bool {
		select {
		case <-tm.done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	require.Equal(t, 10, tm.Remaining())
}

func TestTimerRealTicker(t *testing.T) {
	done := make(chan struct{})
	tm := NewTimer(2, func() { close(done) })
	tm.interval = 5 * time.Millisecond
	tm.Start(nil)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
	require.Equal(t, TimerExpired, tm.State())
}

func TestPropertyTimerMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, 120).Draw(rt, "total")
		ticks := rapid.IntRange(0, 200).Draw(rt, "ticks")

		fired := 0
		tm := NewTimer(total, func() { fired++ })
		tm.mu.Lock()
		tm.state = TimerRunning
		tm.mu.Unlock()

		prev := tm.Remaining()
		for i := 0; i < ticks; i++ {
			tm.Tick()
			cur := tm.Remaining()
			if cur > prev {
				rt.Fatalf("remaining increased from %d to %d", prev, cur)
			}
			if cur < 0 {
				rt.Fatalf("remaining went negative: %d", cur)
			}
			prev = cur
		}

		if ticks >= total {
			if fired != 1 || tm.Remaining() != 0 || tm.State() != TimerExpired {
				rt.Fatalf("after %d ticks of %d: fired=%d remaining=%d state=%s",
					ticks, total, fired, tm.Remaining(), tm.State())
			}
		} else if fired != 0 || tm.Remaining() != total-ticks {
			rt.Fatalf("after %d ticks of %d: fired=%d remaining=%d", ticks, total, fired, tm.Remaining())
		}
	})
}
