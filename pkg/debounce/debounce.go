// Package debounce provides a generic time-delay coalescing primitive:
// rapid repeated calls collapse into one delayed invocation carrying the most
// recent argument, with optional leading-edge invocation and a maxWait bound
// on total deferral. A throttler is the same primitive with both edges on and
// maxWait pinned to the wait interval.
//
// The primitive is cooperative: scheduling happens on host timers, invocation
// happens outside the internal lock, and re-entrant calls from within the
// wrapped function are the caller's responsibility.
package debounce

import (
	"sync"
	"time"
)

// Option configures edge and bound behaviour.
type Option func(*config)

type config struct {
	leading  bool
	trailing bool
	maxWait  time.Duration
	hasMax   bool
}

// WithLeading toggles invocation on the leading edge of the wait interval.
func WithLeading(leading bool) Option {
	return func(cfg *config) {
		cfg.leading = leading
	}
}

// WithTrailing toggles invocation on the trailing edge of the wait interval.
// Trailing is on by default.
func WithTrailing(trailing bool) Option {
	return func(cfg *config) {
		cfg.trailing = trailing
	}
}

// WithMaxWait bounds the maximum delay between an initiating call and its
// eventual invocation, even under continuous re-triggering.
func WithMaxWait(d time.Duration) Option {
	return func(cfg *config) {
		cfg.maxWait = d
		cfg.hasMax = true
	}
}

// Debouncer coalesces calls carrying an argument of type T.
type Debouncer[T any] struct {
	fn   func(T)
	wait time.Duration
	cfg  config

	mu             sync.Mutex
	timer          *time.Timer
	lastArg        T
	pending        bool
	lastCallTime   time.Time
	lastInvokeTime time.Time
}

// New wraps fn so that bursts of calls within wait collapse per the
// configured edges. Default configuration is trailing-only.
func New[T any](fn func(T), wait time.Duration, opts ...Option) *Debouncer[T] {
	cfg := config{trailing: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.hasMax && cfg.maxWait < wait {
		cfg.maxWait = wait
	}
	return &Debouncer[T]{fn: fn, wait: wait, cfg: cfg}
}

// Throttle wraps fn so it is invoked at most once per wait interval, on both
// edges: leading and trailing on, maxWait forced equal to wait.
func Throttle[T any](fn func(T), wait time.Duration, opts ...Option) *Debouncer[T] {
	opts = append(opts, WithLeading(true), WithMaxWait(wait))
	return New(fn, wait, opts...)
}

// Call records the argument and call time, then either invokes immediately
// (leading edge, maxWait overflow) or (re)arms the trailing timer.
func (d *Debouncer[T]) Call(arg T) {
	now := time.Now()

	d.mu.Lock()
	invoking := d.shouldInvoke(now)
	d.lastArg = arg
	d.pending = true
	d.lastCallTime = now

	var invoke bool
	switch {
	case invoking && d.timer == nil:
		// Leading edge of a fresh burst.
		d.lastInvokeTime = now
		d.startTimer(d.wait)
		if d.cfg.leading {
			d.pending = false
			invoke = true
		}
	case invoking && d.cfg.hasMax:
		// Mid-burst maxWait overflow: invoke now and keep the timer running.
		d.lastInvokeTime = now
		d.pending = false
		d.restartTimer(d.wait)
		invoke = true
	case d.timer == nil:
		d.startTimer(d.wait)
	}
	d.mu.Unlock()

	if invoke {
		d.fn(arg)
	}
}

// Cancel discards any pending timer and recorded call state without invoking.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.lastArg = zero
	d.pending = false
	d.lastCallTime = time.Time{}
	d.lastInvokeTime = time.Time{}
	d.mu.Unlock()
}

// Flush forces immediate trailing-edge invocation of any pending call; it is
// a no-op when nothing is pending.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	arg, invoke := d.trailingEdgeLocked(time.Now())
	d.mu.Unlock()

	if invoke {
		d.fn(arg)
	}
}

// Pending reports whether an invocation is currently scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// shouldInvoke holds on the very first call, after a quiet period of at least
// wait, when the clock moved backward, or when maxWait has elapsed since the
// last invocation.
func (d *Debouncer[T]) shouldInvoke(now time.Time) bool {
	if d.lastCallTime.IsZero() {
		return true
	}
	sinceCall := now.Sub(d.lastCallTime)
	if sinceCall >= d.wait || sinceCall < 0 {
		return true
	}
	return d.cfg.hasMax && now.Sub(d.lastInvokeTime) >= d.cfg.maxWait
}

func (d *Debouncer[T]) startTimer(wait time.Duration) {
	d.timer = time.AfterFunc(wait, d.timerExpired)
}

func (d *Debouncer[T]) restartTimer(wait time.Duration) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.startTimer(wait)
}

func (d *Debouncer[T]) timerExpired() {
	now := time.Now()

	d.mu.Lock()
	if d.timer == nil {
		// Cancelled or flushed between expiry and lock acquisition.
		d.mu.Unlock()
		return
	}
	if !d.shouldInvoke(now) {
		d.restartTimer(d.remainingWait(now))
		d.mu.Unlock()
		return
	}
	arg, invoke := d.trailingEdgeLocked(now)
	d.mu.Unlock()

	if invoke {
		d.fn(arg)
	}
}

// trailingEdgeLocked clears the timer and decides whether the trailing edge
// fires. Callers hold d.mu and invoke fn after releasing it.
func (d *Debouncer[T]) trailingEdgeLocked(now time.Time) (T, bool) {
	d.timer = nil
	if d.cfg.trailing && d.pending {
		d.lastInvokeTime = now
		d.pending = false
		return d.lastArg, true
	}
	var zero T
	d.pending = false
	return zero, false
}

func (d *Debouncer[T]) remainingWait(now time.Time) time.Duration {
	remaining := d.wait - now.Sub(d.lastCallTime)
	if d.cfg.hasMax {
		untilMax := d.cfg.maxWait - now.Sub(d.lastInvokeTime)
		if untilMax < remaining {
			remaining = untilMax
		}
	}
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return remaining
}
