// Package ratelimit implements a per-principal, per-action sliding-window
// rate limiter. It is process-local: counts are not shared across replicas
// and do not survive a restart.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is the sentinel matched by errors.Is for any limiter rejection.
var ErrLimited = errors.New("ratelimit: too many attempts")

// LimitedError reports a rejection along with a retry hint.
type LimitedError struct {
	PrincipalID string
	Action      string
	RetryAfter  time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("ratelimit: %s exceeded for %s (retry in %s)", e.Action, e.PrincipalID, e.RetryAfter)
}

func (e *LimitedError) Unwrap() error { return ErrLimited }

type windowKey struct {
	principalID string
	action      string
}

type window struct {
	stamps []time.Time
	// span is the window duration from the most recent check; the sweeper
	// uses it to decide when an idle key can be dropped.
	span time.Duration
}

// Limiter owns a concurrency-safe map of (principal, action) windows. It is
// an explicit service object injected into request handling, not ambient
// package state.
type Limiter struct {
	mu      sync.Mutex
	windows map[windowKey]*window
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[windowKey]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one attempt for (principalID, action). Entries older than
// the window are pruned lazily, then the attempt is rejected when the
// remaining count has reached maxAttempts. Prune, count and append happen
// under one lock so concurrent requests from the same principal serialize.
func (l *Limiter) Check(principalID, action string, maxAttempts int, windowDuration time.Duration) error {
	if maxAttempts <= 0 || windowDuration <= 0 {
		return nil
	}
	now := l.now()
	cutoff := now.Add(-windowDuration)
	key := windowKey{principalID: principalID, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.span = windowDuration

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		// Only entries strictly older than the cutoff age out, so an
		// attempt made exactly one window ago still counts.
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= maxAttempts {
		oldest := w.stamps[0]
		return &LimitedError{
			PrincipalID: principalID,
			Action:      action,
			RetryAfter:  oldest.Add(windowDuration).Sub(now),
		}
	}

	w.stamps = append(w.stamps, now)
	return nil
}

// Len reports the number of tracked windows. Intended for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweep drops windows whose newest entry has aged out. Without it a key
// that is never revisited would hold its timestamps until process restart.
func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if len(w.stamps) == 0 {
			delete(l.windows, key)
			continue
		}
		newest := w.stamps[len(w.stamps)-1]
		if now.Sub(newest) > w.span {
			delete(l.windows, key)
		}
	}
}

// StartSweeper runs sweep on the given interval until the returned stop
// function is called.
func (l *Limiter) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
