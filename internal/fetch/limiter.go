// Colporteur - Collectibles Metadata Aggregation and Caching Gateway
// Copyright 2026 F.X. Brun (fxbrun)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fxbrun/colporteur

package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum spacing between consecutive calls to the
// same provider, across all concurrent requests. Providers without a
// registered interval pass through unthrottled.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiter returns an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter)}
}

// SetMinInterval registers the spacing for one provider. A non-positive
// interval removes any throttle.
func (l *Limiter) SetMinInterval(source string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval <= 0 {
		delete(l.limiters, source)
		return
	}
	// Burst of 1 turns the rate limiter into a pure spacer.
	l.limiters[source] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until the provider's spacing allows another call, or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	l.mu.Lock()
	lim := l.limiters[source]
	l.mu.Unlock()
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
