// Package ai holds helpers shared by the LLM backend adapters and the
// factory that picks a backend from user settings.
package ai

import (
	"context"
	"strings"
	"time"
)

// Limiter throttles provider calls. The Redis token bucket implements it;
// a nil limiter means unthrottled.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// WaitAllow blocks until the limiter admits one call for key, sleeping the
// advised retry interval between attempts. A nil limiter admits immediately.
func WaitAllow(ctx context.Context, l Limiter, key string) error {
	if l == nil {
		return nil
	}
	for {
		allowed, retryAfter, err := l.Allow(ctx, key, 1)
		if err != nil {
			// limiter outage must not take the pipeline down
			return nil
		}
		if allowed {
			return nil
		}
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

// StripFences removes a surrounding markdown code fence from a model reply.
// Models routinely wrap JSON in ```json blocks despite instructions.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
