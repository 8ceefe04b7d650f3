package examsession

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-client/internal/model"
)

const (
	// CriticalThreshold and WarningThreshold bound the urgency bands, in seconds.
	CriticalThreshold = 5 * 60
	WarningThreshold  = 15 * 60
)

// Countdown owns the once-per-second ticker and the remaining seconds.
// The ticker exists only between Start and Stop; while stopped C returns a
// nil channel so the session loop can never observe a late tick.
type Countdown struct {
	clock     clockwork.Clock
	remaining int
	ticker    clockwork.Ticker
}

// NewCountdown starts from total, truncated to whole seconds and floored at 0.
func NewCountdown(clock clockwork.Clock, total time.Duration) *Countdown {
	secs := int(total / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &Countdown{clock: clock, remaining: secs}
}

// Start arms the ticker. It is a no-op when already running or expired.
func (c *Countdown) Start() {
	if c.ticker != nil || c.remaining == 0 {
		return
	}
	c.ticker = c.clock.NewTicker(time.Second)
}

// Stop cancels the ticker.
func (c *Countdown) Stop() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
}

// Running reports whether the ticker is armed.
func (c *Countdown) Running() bool { return c.ticker != nil }

// C is the tick channel, nil while stopped.
func (c *Countdown) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Tick decrements the remaining time and reports whether this tick took it
// to zero. Ticks at zero report false so expiry is observed once.
func (c *Countdown) Tick() (expired bool) {
	if c.remaining == 0 {
		return false
	}
	c.remaining--
	return c.remaining == 0
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int { return c.remaining }

// Urgency classifies the remaining time.
func (c *Countdown) Urgency() model.Urgency { return Classify(c.remaining) }

// Classify maps remaining seconds to an urgency band.
func Classify(remaining int) model.Urgency {
	switch {
	case remaining <= CriticalThreshold:
		return model.UrgencyCritical
	case remaining <= WarningThreshold:
		return model.UrgencyWarning
	default:
		return model.UrgencyNormal
	}
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
