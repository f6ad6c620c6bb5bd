package compliance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// call runs fn against an external collaborator with a bounded timeout.
// Any failure, including the deadline, becomes an *InfraError; it is never
// read as a negative or positive outcome.
func call[T any](ctx context.Context, e *Engine, service string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	var err error
	select {
	case r := <-done:
		if r.err == nil {
			e.metrics.ObserveExternalCall(e.profile.Name, service, nil, start)
			return r.value, nil
		}
		err = r.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.metrics.ObserveExternalCall(e.profile.Name, service, err, start)
	e.logger.Warn("External compliance call failed",
		zap.String("service", service),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return zero, &InfraError{Provider: e.profile.Name, Service: service, Err: err}
}

func (e *Engine) lookup(ctx context.Context, service string, fn func(context.Context) (bool, error)) (bool, error) {
	return call(ctx, e, service, e.lookupTimeout, fn)
}
