package session

import (
	"sync"
	"time"
)

// TimerState is the lifecycle state of a Timer.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerExpired TimerState = "expired"
)

// Timer counts down the remaining seconds of a sitting and calls onExpire
// exactly once when the count reaches zero.
type Timer struct {
	mu        sync.Mutex
	state     TimerState
	total     int
	remaining int
	onExpire  func()

	interval time.Duration
	ticks    <-chan time.Time
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTimer creates an idle timer for the given number of seconds.
func NewTimer(seconds int, onExpire func()) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	return &Timer{
		state:     TimerIdle,
		total:     seconds,
		remaining: seconds,
		onExpire:  onExpire,
		interval:  time.Second,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start moves an idle timer with a positive limit to Running and begins
// ticking. Ticks come from ticks when non-nil, otherwise from a time.Ticker.
func (t *Timer) Start(ticks <-chan time.Time) {
	t.mu.Lock()
	if t.state != TimerIdle || t.total <= 0 {
		t.mu.Unlock()
		return
	}
	t.state = TimerRunning
	t.ticks = ticks
	t.mu.Unlock()

	go t.run()
}

func (t *Timer) run() {
	defer close(t.done)

	ticks := t.ticks
	if ticks == nil {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	for {
		select {
		case <-t.stop:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			if t.Tick() {
				return
			}
		}
	}
}

// Tick decrements the remaining time by one second, clamping at zero. It
// returns true once the timer has expired. Ticks outside Running are ignored.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.state != TimerRunning {
		expired := t.state == TimerExpired
		t.mu.Unlock()
		return expired
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		t.mu.Unlock()
		return false
	}
	t.state = TimerExpired
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Stop halts ticking. It is safe to call more than once and on a timer that
// never started.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Elapsed returns the seconds consumed so far.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - t.remaining
}

// Total returns the configured limit in seconds.
func (t *Timer) Total() int {
	return t.total
}

// State returns the current timer state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
