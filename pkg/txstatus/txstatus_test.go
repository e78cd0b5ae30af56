package txstatus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-solver/pkg/txstatus"
)

type manualTimer struct {
	fn      func()
	delay   time.Duration
	stopped bool
}

func (m *manualTimer) Stop() bool {
	wasActive := !m.stopped
	m.stopped = true
	return wasActive
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) txstatus.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{fn: f, delay: d}
	c.timers = append(c.timers, timer)
	return timer
}

// fire runs every timer that has not been stopped
func (c *manualClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()

	for _, timer := range timers {
		if !timer.stopped {
			timer.fn()
		}
	}
}

func TestTrackerStartsIdle(t *testing.T) {
	tracker := txstatus.New()
	assert.Equal(t, txstatus.Idle, tracker.State())
	assert.False(t, tracker.IsPending())
}

func TestTrackerResetsAfterCooldown(t *testing.T) {
	for _, terminal := range []txstatus.State{txstatus.Success, txstatus.Error} {
		t.Run(string(terminal), func(t *testing.T) {
			clock := &manualClock{}
			tracker := txstatus.New(txstatus.WithAfterFunc(clock.AfterFunc))

			tracker.Set(txstatus.Pending)
			assert.True(t, tracker.IsPending())

			tracker.Set(terminal)
			assert.Equal(t, terminal, tracker.State())
			require.Len(t, clock.timers, 1)
			assert.Equal(t, txstatus.DefaultCooldown, clock.timers[0].delay)

			clock.fire()
			assert.Equal(t, txstatus.Idle, tracker.State())
		})
	}
}

func TestTrackerNewSubmissionCancelsReset(t *testing.T) {
	clock := &manualClock{}
	tracker := txstatus.New(txstatus.WithAfterFunc(clock.AfterFunc))

	tracker.Set(txstatus.Error)
	tracker.Set(txstatus.Pending)
	clock.fire()

	assert.Equal(t, txstatus.Pending, tracker.State())
}

func TestTrackerSubscribers(t *testing.T) {
	clock := &manualClock{}
	tracker := txstatus.New(txstatus.WithAfterFunc(clock.AfterFunc))

	var seen []txstatus.State
	unsubscribe := tracker.Subscribe(func(s txstatus.State) { seen = append(seen, s) })

	tracker.Set(txstatus.Pending)
	tracker.Set(txstatus.Success)
	clock.fire()
	assert.Equal(t, []txstatus.State{txstatus.Pending, txstatus.Success, txstatus.Idle}, seen)

	unsubscribe()
	tracker.Set(txstatus.Pending)
	assert.Len(t, seen, 3)
}

func TestTrackerRealTimer(t *testing.T) {
	tracker := txstatus.New(txstatus.WithCooldown(10 * time.Millisecond))
	tracker.Set(txstatus.Error)

	assert.Eventually(t, func() bool {
		return tracker.State() == txstatus.Idle
	}, time.Second, 5*time.Millisecond)
}
