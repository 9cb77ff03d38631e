// Package ratelimit bounds the request rate and concurrency per external
// source. The limiter never fails; it only delays. Retrying is the source
// adapter's responsibility.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultBackoff is applied when a source signals "too many requests"
	// without a duration hint.
	DefaultBackoff = time.Minute

	// MaxBackoff caps any backoff hint so a misbehaving source cannot
	// stall acquisition permanently.
	MaxBackoff = 5 * time.Minute
)

// Limiter enforces, per source, a maximum number of requests in any rolling
// minute and a maximum number of concurrently in-flight requests.
type Limiter struct {
	perMinute  int
	concurrent int64

	mu      sync.Mutex
	sources map[string]*sourceState

	now func() time.Time // injectable for tests
}

type sourceState struct {
	sem          *semaphore.Weighted
	recent       []time.Time // timestamps of requests in the rolling window
	backoffUntil time.Time
}

// New creates a Limiter allowing perMinute requests per rolling minute and
// concurrent in-flight requests per source.
func New(perMinute int, concurrent int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if concurrent < 1 {
		concurrent = 1
	}
	return &Limiter{
		perMinute:  perMinute,
		concurrent: int64(concurrent),
		sources:    make(map[string]*sourceState),
		now:        time.Now,
	}
}

func (l *Limiter) state(sourceID string) *sourceState {
	st, ok := l.sources[sourceID]
	if !ok {
		st = &sourceState{sem: semaphore.NewWeighted(l.concurrent)}
		l.sources[sourceID] = st
	}
	return st
}

// Acquire blocks until the caller may issue one request to sourceID, or
// until ctx is cancelled. Every successful Acquire must be paired with a
// Release once the request finishes.
func (l *Limiter) Acquire(ctx context.Context, sourceID string) error {
	l.mu.Lock()
	st := l.state(sourceID)
	l.mu.Unlock()

	if err := st.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	for {
		wait := l.nextDelay(st)
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			st.sem.Release(1)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextDelay returns how long the caller must wait before its request may
// start, recording the request timestamp when no wait is needed.
func (l *Limiter) nextDelay(st *sourceState) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if st.backoffUntil.After(now) {
		return st.backoffUntil.Sub(now)
	}

	// Drop timestamps that left the rolling minute.
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(st.recent) && !st.recent[i].After(cutoff) {
		i++
	}
	st.recent = st.recent[i:]

	if len(st.recent) >= l.perMinute {
		return st.recent[0].Add(time.Minute).Sub(now)
	}

	st.recent = append(st.recent, now)
	return 0
}

// Release returns the in-flight slot acquired by Acquire.
func (l *Limiter) Release(sourceID string) {
	l.mu.Lock()
	st := l.state(sourceID)
	l.mu.Unlock()
	st.sem.Release(1)
}

// Backoff pauses all further acquisitions for sourceID until hint elapses.
// A zero hint falls back to DefaultBackoff; hints are capped at MaxBackoff.
func (l *Limiter) Backoff(sourceID string, hint time.Duration) {
	if hint <= 0 {
		hint = DefaultBackoff
	}
	if hint > MaxBackoff {
		hint = MaxBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.state(sourceID)
	until := l.now().Add(hint)
	if until.After(st.backoffUntil) {
		st.backoffUntil = until
		log.Printf("[ratelimit] Source %s backing off for %s", sourceID, hint)
	}
}

// InBackoff reports whether sourceID is currently paused.
func (l *Limiter) InBackoff(sourceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state(sourceID).backoffUntil.After(l.now())
}
