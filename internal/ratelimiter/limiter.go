package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Service names an external dependency with its own token bucket.
type Service string

const (
	ServiceTranslate Service = "translate"
	ServiceGenerate  Service = "generate"
)

// ServiceLimiters holds one token bucket limiter per external service.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type ServiceLimiters struct {
	limiters map[Service]*rate.Limiter
}

// New creates limiters allowing the given requests per second per service.
func New(translatePerSec, generatePerSec int) *ServiceLimiters {
	return &ServiceLimiters{
		limiters: map[Service]*rate.Limiter{
			ServiceTranslate: rate.NewLimiter(rate.Limit(translatePerSec), translatePerSec),
			ServiceGenerate:  rate.NewLimiter(rate.Limit(generatePerSec), generatePerSec),
		},
	}
}

// Unlimited returns limiters that never block. Used in tests.
func Unlimited() *ServiceLimiters {
	return &ServiceLimiters{
		limiters: map[Service]*rate.Limiter{
			ServiceTranslate: rate.NewLimiter(rate.Inf, 1),
			ServiceGenerate:  rate.NewLimiter(rate.Inf, 1),
		},
	}
}

// Wait blocks until the service's limiter grants a token.
// Returns a non-nil error if ctx is cancelled or its deadline would pass
// before a token is available.
func (sl *ServiceLimiters) Wait(ctx context.Context, svc Service) error {
	l, ok := sl.limiters[svc]
	if !ok {
		return fmt.Errorf("no rate limiter for service %q", svc)
	}
	return l.Wait(ctx)
}
