package executor

import (
	"errors"
	"fmt"
)

// Sentinel skip conditions. These never surface to callers; they only mark
// attempts in the diagnostics list.
var (
	ErrCircuitOpen = errors.New("circuit open")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrBudgetSpent = errors.New("monthly budget exhausted")
	ErrEmptyChain  = errors.New("fallback chain is empty")
	ErrTimeout     = errors.New("deadline exceeded before success")
)

// UnavailableError wraps a single provider call failure.
type UnavailableError struct {
	ProviderID string
	Err        error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.ProviderID, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ExhaustedError reports that every candidate in the chain was attempted or
// skipped without a success.
type ExhaustedError struct {
	Attempted []string
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("all providers exhausted after %d attempts: %v", len(e.Attempted), e.LastErr)
	}
	return fmt.Sprintf("all providers exhausted after %d attempts", len(e.Attempted))
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
