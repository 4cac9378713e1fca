// Package ai is the provider abstraction: one interface over the summarization
// backends, with a shared error taxonomy the caller's retry policy keys on.
// Providers never retry on their own.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Request is one summarization call. Language is the target language tag
// (en or ptbr); backends that take it as a parameter send it as is.
type Request struct {
	System   string
	User     string
	Language string
}

type Response struct {
	Text string
}

// Provider is implemented once per backend and selected once per run.
type Provider interface {
	Summarize(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	AuthenticationFailed
	RateLimited
	Timeout
	Transport
	InvalidModel
)

func (k Kind) String() string {
	switch k {
	case AuthenticationFailed:
		return "authentication_failed"
	case RateLimited:
		return "rate_limited"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case InvalidModel:
		return "invalid_model"
	}
	return "unknown"
}

// Error is returned by every backend. RetryAfter is the backoff hint the
// backend supplied with a RateLimited error, zero if none.
type Error struct {
	Provider   string
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that are not *Error are mapped from context
// and network timeouts; anything else is Transport.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return Transport
}

// RetryAfter returns the backoff hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// wrapTransport turns a transport-level error into an *Error, keeping
// timeouts distinguishable.
func wrapTransport(provider string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	kind := KindOf(err)
	return &Error{Provider: provider, Kind: kind, Err: err}
}
