package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felipepimentel/aibook/internal/ai"
)

// Policy is the retry policy applied to every provider call made by the
// planner and the chapter summarizer.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// CallTimeout bounds a single attempt. Zero leaves it to the transport.
	CallTimeout time.Duration
	// Retryable reports whether a failure kind is transient. Nil means
	// RateLimited, Timeout and Transport.
	Retryable func(ai.Kind) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		CallTimeout: 2 * time.Minute,
	}
}

func defaultRetryable(k ai.Kind) bool {
	switch k {
	case ai.RateLimited, ai.Timeout, ai.Transport:
		return true
	}
	return false
}

func (p Policy) retryable(k ai.Kind) bool {
	if p.Retryable != nil {
		return p.Retryable(k)
	}
	return defaultRetryable(k)
}

// Delay is the backoff before retry number n (1-based): BaseDelay doubled
// per retry and capped at MaxDelay. A larger server hint wins.
func (p Policy) Delay(n int, hint time.Duration) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n && (p.MaxDelay <= 0 || d < p.MaxDelay); i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if hint > d {
		d = hint
	}
	return d
}

// errStopped marks a call abandoned because the run was canceled before an
// attempt could start.
var errStopped = errors.New("run canceled")

// call runs req through p under the policy. No attempt starts once ctx is
// done; an attempt already started runs to completion on a detached context
// bounded by CallTimeout.
func (p Policy) call(ctx context.Context, prov ai.Provider, req ai.Request, log *slog.Logger) (ai.Response, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return ai.Response{}, fmt.Errorf("%w: %w", errStopped, context.Cause(ctx))
		}
		resp, err := p.attempt(ctx, prov, req)
		if err == nil {
			return resp, nil
		}
		kind := ai.KindOf(err)
		if !p.retryable(kind) || n >= attempts {
			if n > 1 {
				return ai.Response{}, fmt.Errorf("after %d attempts: %w", n, err)
			}
			return ai.Response{}, err
		}
		wait := p.Delay(n, ai.RetryAfter(err))
		log.Debug("provider call failed, retrying",
			"provider", prov.Name(), "attempt", n, "kind", kind.String(), "backoff", wait, "err", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ai.Response{}, fmt.Errorf("%w: %w", errStopped, context.Cause(ctx))
		case <-t.C:
		}
	}
}

func (p Policy) attempt(ctx context.Context, prov ai.Provider, req ai.Request) (ai.Response, error) {
	actx := context.WithoutCancel(ctx)
	if p.CallTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, p.CallTimeout)
		defer cancel()
	}
	return prov.Summarize(actx, req)
}
