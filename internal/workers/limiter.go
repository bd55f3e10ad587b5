package workers

import (
	"context"
	"sync"
)

// Limiter hands out a fixed number of slots. The zero value is not usable;
// create one with NewLimiter.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter creates a Limiter with n slots. n below 1 is treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func gives the slot back and is safe to call more than once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-l.slots })
	}, nil
}

// Size returns the total number of slots.
func (l *Limiter) Size() int {
	return cap(l.slots)
}

// InUse returns the number of slots currently held.
func (l *Limiter) InUse() int {
	return len(l.slots)
}
