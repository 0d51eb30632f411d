package dispatch

import (
	"fmt"
	"time"
)

// RetryableError reports a failed attempt that still has retry budget.
// The worker layer turns it into a durable scheduled retry; nothing here
// blocks waiting for the delay.
type RetryableError struct {
	Attempt int
	Delay   time.Duration
	Err     error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("attempt %d failed, retry in %s: %v", e.Attempt, e.Delay, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// ExhaustedError means every attempt failed. It is the sole trigger for
// fallback generation and carries the last underlying failure.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("engine unavailable after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
