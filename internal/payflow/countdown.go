package payflow

import (
	"sync"
	"time"
)

// Remaining is one sample of a countdown, decomposed for display.
type Remaining struct {
	Hours   int
	Minutes int
	Seconds int
	Total   time.Duration
}

// Expired reports whether the countdown has reached zero.
func (r Remaining) Expired() bool {
	return r.Total <= 0
}

func remainingUntil(target, now time.Time) Remaining {
	d := target.Sub(now)
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	return Remaining{
		Hours:   secs / 3600,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
		Total:   d,
	}
}

// Countdown is a cancellable scheduled task that re-samples the clock on a
// fixed interval and reports the time left until a target instant. It ticks
// once immediately on Start, stops itself after delivering the zero sample,
// and must be stopped by its owner on teardown otherwise.
type Countdown struct {
	target   time.Time
	interval time.Duration
	onTick   func(Remaining)
	now      func() time.Time

	stopc    chan struct{}
	stopOnce sync.Once
}

// NewCountdown builds a countdown toward target, delivering samples to
// onTick. The sampling interval is one second.
func NewCountdown(target time.Time, onTick func(Remaining)) *Countdown {
	return &Countdown{
		target:   target,
		interval: time.Second,
		onTick:   onTick,
		now:      time.Now,
		stopc:    make(chan struct{}),
	}
}

// WithInterval overrides the sampling interval. Test helper.
func (c *Countdown) WithInterval(d time.Duration) *Countdown {
	c.interval = d
	return c
}

// WithClock overrides the clock. Test helper.
func (c *Countdown) WithClock(now func() time.Time) *Countdown {
	c.now = now
	return c
}

// Start launches the sampling goroutine. A target already in the past yields
// a single immediate zero tick.
func (c *Countdown) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			rem := remainingUntil(c.target, c.now())
			c.onTick(rem)
			if rem.Expired() {
				return
			}

			select {
			case <-ticker.C:
			case <-c.stopc:
				return
			}
		}
	}()
}

// Stop cancels the countdown. Safe to call more than once.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stopc) })
}
