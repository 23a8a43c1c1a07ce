package lock

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNotAcquired indica que otro proceso (o goroutine) tiene el lock.
var ErrNotAcquired = errors.New("lock not acquired")

// DrainLock serializa los ciclos de drenado del outbox.
// TryAcquire no bloquea: devuelve ErrNotAcquired si el lock está ocupado.
type DrainLock interface {
	TryAcquire(ctx context.Context) (release func(context.Context) error, err error)
}

// LocalLock es un lock de proceso basado en compare-and-swap.
type LocalLock struct {
	held atomic.Bool
}

var _ DrainLock = (*LocalLock)(nil)

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) TryAcquire(ctx context.Context) (func(context.Context) error, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, ErrNotAcquired
	}
	return func(context.Context) error {
		l.held.Store(false)
		return nil
	}, nil
}
