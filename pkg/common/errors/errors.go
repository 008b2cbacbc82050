package errors

import (
	"context"
	"errors"
)

// Common error types used across the gopermit library

var (
	// ErrClosed indicates that an operation was attempted on a closed limiter
	ErrClosed = errors.New("limiter is closed")

	// ErrInvalidRequest indicates a permit request that violates the caller contract
	ErrInvalidRequest = errors.New("invalid permit request")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrClockDrift indicates that the monotonic clock moved backwards
	ErrClockDrift = errors.New("monotonic clock moved backwards")
)

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation once tokens have been replenished
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsTerminal returns true if the error indicates that the limiter will
// never grant permits again
func IsTerminal(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrClockDrift)
}
