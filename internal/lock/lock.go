// Package lock serializes pipeline runs behind a single named lock.
package lock

import (
	"context"
	"sync"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
)

// Release gives the lock back. It must be called exactly once.
type Release func(ctx context.Context) error

// Locker hands out the run lock without waiting: when another holder has it,
// Acquire returns apperrors.ErrRunInProgress.
type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

// Local guards runs inside a single process.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) Acquire(ctx context.Context) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, apperrors.ErrRunInProgress
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
