// Package ratelimit throttles outbound sink requests to a fixed budget per
// rolling one-second window.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter admits at most capacity acquisitions in any rolling one-second
// window. Acquire blocks until admission; callers are served in FIFO order
// because admissions are serialized through a single slot channel.
//
// The implementation keeps a ring of the last `capacity` admission times.
// A new acquisition is admitted once the oldest of those times has aged out
// of the window, so an initial burst of `capacity` calls passes immediately
// and the rolling cap is never exceeded afterwards.
type Limiter struct {
	capacity int
	window   time.Duration

	slot chan struct{} // serializes admission decisions

	// ring of the last `capacity` admission times; guarded by slot.
	ring []time.Time
	next int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a limiter admitting perSecond acquisitions per rolling second.
func New(perSecond int) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	l := &Limiter{
		capacity: perSecond,
		window:   time.Second,
		slot:     make(chan struct{}, 1),
		ring:     make([]time.Time, perSecond),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	l.slot <- struct{}{}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until one unit of rate budget is available, then consumes
// it. Returns the context error if ctx is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.slot:
	}
	defer func() { l.slot <- struct{}{} }()

	oldest := l.ring[l.next]
	if !oldest.IsZero() {
		if wait := l.window - l.now().Sub(oldest); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	l.ring[l.next] = l.now()
	l.next = (l.next + 1) % l.capacity
	return nil
}

// Capacity returns the per-window admission budget.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// String describes the limiter for logs.
func (l *Limiter) String() string {
	return fmt.Sprintf("%d req/%s", l.capacity, l.window)
}
