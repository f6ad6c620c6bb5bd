package compliance

import (
	"context"
	"errors"
	"fmt"

	"github.com/banking/regional-compliance/internal/domain"
)

var (
	// ErrNotInitialized is returned by every operation of a provider that
	// has not been initialized
	ErrNotInitialized = errors.New("compliance provider not initialized")

	// ErrNoProvider is returned when no provider resolves for a request
	ErrNoProvider = errors.New("no compliance provider available")

	// ErrCapabilityUnsupported is matched by every *CapabilityError
	ErrCapabilityUnsupported = errors.New("operation not supported by provider")

	// ErrInfrastructure is matched by every *InfraError
	ErrInfrastructure = errors.New("compliance infrastructure failure")

	// ErrInvalidRequest marks malformed input
	ErrInvalidRequest = errors.New("invalid compliance request")

	// ErrReportNotFound is returned for unknown report ids
	ErrReportNotFound = errors.New("report not found")
)

// CapabilityError reports an operation the resolved provider cannot perform
type CapabilityError struct {
	Provider  string
	Operation domain.Operation
	Report    domain.ReportType
}

func (e *CapabilityError) Error() string {
	if e.Report != "" {
		return fmt.Sprintf("provider %s cannot file %s reports", e.Provider, e.Report)
	}
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Operation)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapabilityUnsupported }

// InfraError wraps a failed or timed out call to an external collaborator.
// It is always retryable and never means "check passed".
type InfraError struct {
	Provider string
	Service  string
	Err      error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %s call failed: %v", e.Provider, e.Service, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

func (e *InfraError) Is(target error) bool { return target == ErrInfrastructure }

// Timeout reports whether the call ran out of time
func (e *InfraError) Timeout() bool { return errors.Is(e.Err, context.DeadlineExceeded) }

// Retryable reports whether err may succeed when retried with backoff
func Retryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
