package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider so calls wait for a token from a shared limiter.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond calls with a burst of one. A non-positive
// rate returns the provider unchanged.
func NewRateLimited(p Provider, perSecond float64) Provider {
	if perSecond <= 0 {
		return p
	}
	return &RateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Provider.Complete(ctx, req)
}
