package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrResultNotReady    = errors.New("result not ready")
	ErrInvalidBrief      = errors.New("invalid brief")
	ErrInvalidScenePlan  = errors.New("invalid scene plan")
	ErrProviderFailure   = errors.New("provider failure")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	ErrPoolClosed        = errors.New("worker pool closed")
)

// ErrorKind classifies a failure at a provider call boundary so retry loops
// can switch on the kind instead of inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransient marks rate limiting and resource exhaustion.
	KindTransient
	// KindPermanent marks bad requests and empty or corrupt payloads.
	KindPermanent
	// KindQuality marks an artifact that violated a content gate.
	KindQuality
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindQuality:
		return "quality"
	default:
		return "unknown"
	}
}

// ProviderError wraps a failure returned by an external generative provider.
type ProviderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProviderFailure) match any provider error.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// Transient builds a rate-limit/resource-exhausted provider error.
func Transient(op string, err error) error {
	return &ProviderError{Kind: KindTransient, Op: op, Err: err}
}

// Permanent builds a non-retryable-by-backoff provider error.
func Permanent(op string, err error) error {
	return &ProviderError{Kind: KindPermanent, Op: op, Err: err}
}

// KindOf extracts the error kind; errors that are not provider errors are
// treated as permanent.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindPermanent
}
