package action

import (
	"context"
	"time"
)

// Delays bounds every pause the executor and agent loop take.
type Delays struct {
	ReadMin     time.Duration
	ReadMax     time.Duration
	WaitMin     time.Duration
	WaitMax     time.Duration
	PostMin     time.Duration
	PostMax     time.Duration
	ClickPause  time.Duration
	SearchPause time.Duration
}

// DefaultDelays returns human-paced timings.
func DefaultDelays() Delays {
	return Delays{
		ReadMin:     2 * time.Second,
		ReadMax:     8 * time.Second,
		WaitMin:     1 * time.Second,
		WaitMax:     5 * time.Second,
		PostMin:     500 * time.Millisecond,
		PostMax:     2 * time.Second,
		ClickPause:  2 * time.Second,
		SearchPause: 3 * time.Second,
	}
}

// Scale multiplies every delay by f. Tests use it to compress runs.
func (d Delays) Scale(f float64) Delays {
	s := func(v time.Duration) time.Duration { return time.Duration(float64(v) * f) }
	return Delays{
		ReadMin:     s(d.ReadMin),
		ReadMax:     s(d.ReadMax),
		WaitMin:     s(d.WaitMin),
		WaitMax:     s(d.WaitMax),
		PostMin:     s(d.PostMin),
		PostMax:     s(d.PostMax),
		ClickPause:  s(d.ClickPause),
		SearchPause: s(d.SearchPause),
	}
}

// Random is the subset of *math/rand/v2.Rand the executor draws from.
type Random interface {
	IntN(n int) int
	Float64() float64
}

// Between returns a uniform duration in [min, max] at millisecond resolution.
func Between(r Random, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int((max - min) / time.Millisecond)
	if span <= 0 {
		return min
	}
	return min + time.Duration(r.IntN(span+1))*time.Millisecond
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
