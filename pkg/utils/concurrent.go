// Package utils provides shared helpers for relaygraph: bounded
// concurrent fan-out and vector math used by search and ingestion.
package utils

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// DefaultSemaphoreLimit bounds concurrent external calls when callers do
// not configure a limit.
const DefaultSemaphoreLimit = 10

// PanicError wraps a panic recovered inside a fan-out goroutine.
type PanicError struct {
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// SemaphoreGather executes functions concurrently, at most maxConcurrency
// at a time, and waits for all of them to settle. The returned slice has
// one entry per function in input order; a nil entry means success.
// Panics are recovered and reported as PanicError. This is wait-for-all
// semantics: one failure never cancels siblings already in flight.
func SemaphoreGather(ctx context.Context, maxConcurrency int, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultSemaphoreLimit
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = &PanicError{Value: r, StackTrace: string(debug.Stack())}
				}
			}()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				results[index] = ctx.Err()
				return
			}

			results[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results
}

// GatherWithResults executes functions concurrently and returns results
// and errors in input order.
func GatherWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}

	results := make([]T, len(functions))
	wrapped := make([]func() error, len(functions))
	for i, fn := range functions {
		i, fn := i, fn
		wrapped[i] = func() error {
			var err error
			results[i], err = fn()
			return err
		}
	}

	errs := SemaphoreGather(ctx, maxConcurrency, wrapped...)
	return results, errs
}

// FirstError returns the first non-nil error, or nil.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
