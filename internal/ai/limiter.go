package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so every call first waits on limiter. A nil limiter
// returns p unchanged.
func WithRateLimit(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &limited{Provider: p, limiter: limiter}
}

// NewLimiter allows perSecond calls per second with a burst of twice that.
// perSecond <= 0 disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (l *limited) Summarize(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Provider.Summarize(ctx, req)
}
