// Package live runs the per-device view loops: a fixed-interval poll of the
// session snapshot, a full recompute of the view on every tick, and a local
// countdown per timed question.
package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// QuestionKey identifies one showing of a question. Moving back to an
// earlier question is a new showing.
type QuestionKey struct {
	QuestionID uuid.UUID
	Index      int
}

// Countdown is a cancellable one-shot timer. Arming replaces any running timer.
type Countdown struct {
	clock clockwork.Clock

	mu       sync.Mutex
	timer    clockwork.Timer
	key      QuestionKey
	deadline time.Time
}

// NewCountdown creates a disarmed countdown on clock.
func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Arm starts a timer of d for key, replacing any prior timer.
func (c *Countdown) Arm(key QuestionKey, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		stopAndDrainTimer(c.timer)
	}
	c.timer = c.clock.NewTimer(d)
	c.key = key
	c.deadline = c.clock.Now().Add(d)
}

// Disarm stops the running timer, if any.
func (c *Countdown) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		stopAndDrainTimer(c.timer)
		c.timer = nil
	}
}

// C returns the expiry channel, or nil while disarmed so a select on it blocks.
func (c *Countdown) C() <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		return nil
	}
	return c.timer.Chan()
}

// Armed reports whether a timer is running and for which showing.
func (c *Countdown) Armed() (QuestionKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.timer != nil
}

// Deadline returns when the running timer fires.
func (c *Countdown) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.timer != nil
}

// Remaining returns the time left, never negative, and false while disarmed.
func (c *Countdown) Remaining() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		return 0, false
	}
	left := c.deadline.Sub(c.clock.Now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// RemainingSeconds rounds Remaining up to whole seconds.
func (c *Countdown) RemainingSeconds() int {
	left, _ := c.Remaining()
	return int((left + time.Second - 1) / time.Second)
}

// stopAndDrainTimer stops a timer and drains a pending fire so a later
// select never sees a stale expiry.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
