package utils

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// Retry ejecuta una función con reintentos configurables
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return retryWhile(ctx, attempts, delay, func(error) bool { return true }, fn)
}

// RetryOnConflict reintenta solo mientras fn falle por bloqueo optimista.
// La espera se duplica en cada intento.
func RetryOnConflict(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return retryWhile(ctx, attempts, delay, func(err error) bool {
		return errors.Is(err, sharedDomain.ErrConcurrencyConflict)
	}, fn, withBackoff())
}

type retryOptions struct {
	backoff bool
}

type retryOption func(*retryOptions)

func withBackoff() retryOption {
	return func(o *retryOptions) { o.backoff = true }
}

func retryWhile(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error, opts ...retryOption) error {
	var o retryOptions
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
			// espera antes del siguiente intento
		case <-ctx.Done():
			return ctx.Err()
		}
		if o.backoff {
			delay *= 2
		}
	}
	return err
}
