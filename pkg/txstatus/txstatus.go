// Package txstatus tracks the lifecycle of one submitted operation:
// idle → pending → success | error, and back to idle after a cool-down.
package txstatus

import (
	"sync"
	"time"
)

// State is the status of one submitted operation
type State string

const (
	Idle    State = "idle"    // Nothing submitted
	Pending State = "pending" // Submitted, waiting for the receipt
	Success State = "success" // Receipt reported success
	Error   State = "error"   // Rejected, reverted or failed to submit
)

// DefaultCooldown is how long Success and Error stay visible
const DefaultCooldown = 3 * time.Second

// Timer is a scheduled reset
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Tracker holds one operation's status and notifies subscribers on change
type Tracker struct {
	mu        sync.Mutex
	state     State
	cooldown  time.Duration
	afterFunc AfterFunc
	timer     Timer
	epoch     uint64

	nextSub int
	subs    map[int]func(State)
}

// Option configures a Tracker
type Option func(*Tracker)

// WithCooldown sets the delay before Success/Error return to Idle
func WithCooldown(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.cooldown = d
		}
	}
}

// WithAfterFunc replaces the timer source
func WithAfterFunc(f AfterFunc) Option {
	return func(t *Tracker) { t.afterFunc = f }
}

// New returns an Idle tracker
func New(opts ...Option) *Tracker {
	t := &Tracker{
		state:     Idle,
		cooldown:  DefaultCooldown,
		afterFunc: realAfterFunc,
		subs:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set moves the tracker to s. Terminal states schedule the return to Idle;
// any later Set cancels a pending reset.
func (t *Tracker) Set(s State) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.epoch++
	t.state = s

	if s == Success || s == Error {
		epoch := t.epoch
		t.timer = t.afterFunc(t.cooldown, func() { t.reset(epoch) })
	}
	subs := t.subscribers()
	t.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (t *Tracker) reset(epoch uint64) {
	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		return
	}
	t.epoch++
	t.state = Idle
	t.timer = nil
	subs := t.subscribers()
	t.mu.Unlock()

	for _, fn := range subs {
		fn(Idle)
	}
}

func (t *Tracker) subscribers() []func(State) {
	subs := make([]func(State), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	return subs
}

// State returns the current status
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsPending returns true while a submission is in flight
func (t *Tracker) IsPending() bool {
	return t.State() == Pending
}

// Subscribe registers fn for every change and returns a function that
// removes it
func (t *Tracker) Subscribe(fn func(State)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}
