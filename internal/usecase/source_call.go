package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/partselect/backend/internal/domain"
)

// SourceObserver receives one notification per adapter call
type SourceObserver interface {
	ObserveSourceCall(source, operation string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveSourceCall(string, string, time.Duration, error) {}

// Operation labels passed to SourceObserver
const (
	operationSearch = "search"
	operationPrice  = "price"
)

type callResult[T any] struct {
	value T
	err   error
}

// guardedCall runs fn under a per-call timeout and converts panics, errors and
// timeouts into an error wrapping domain.ErrSourceUnavailable. It returns as
// soon as the deadline passes even if fn ignores its context.
func guardedCall[T any](
	ctx context.Context,
	timeout time.Duration,
	source string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		value, err := fn(callCtx)
		done <- callResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return zero, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, source, res.err)
		}
		return res.value, nil
	case <-callCtx.Done():
		return zero, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, source, callCtx.Err())
	}
}
