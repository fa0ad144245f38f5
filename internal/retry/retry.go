// Package retry provides middleware for wrapping outbound calls (LLM oracle
// requests, external adapter deliveries) with timeouts, exponential backoff,
// and circuit breaking, composed the way connectivity/router.go composes its
// Handler chain in the teacher repo.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Handler performs one unit of outbound work against an opaque payload and
// returns an opaque result, so the same middleware chain wraps an LLM call,
// an HTTP delivery, or any other remote operation.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// HandlerMiddleware wraps a Handler to add cross-cutting behaviour.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares around base in the order given: the first
// middleware is outermost.
func Chain(base Handler, mws ...HandlerMiddleware) Handler {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithTimeout bounds every call with defaultTimeout via context.
func WithTimeout(defaultTimeout time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
			defer cancel()
			return next(ctx, payload)
		}
	}
}

// WithRetry retries next up to maxRetries times on failure, using exponential
// backoff starting at baseBackoff (baseBackoff*2^attempt). It does not retry
// when the context is done or when next returns *ErrCircuitOpen, since a
// retry would just be rejected by the breaker again.
func WithRetry(maxRetries int, baseBackoff time.Duration, logger *slog.Logger) HandlerMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				out, err := next(ctx, payload)
				if err == nil {
					return out, nil
				}
				lastErr = err

				var circuitOpen *ErrCircuitOpen
				if errors.As(err, &circuitOpen) {
					return nil, err
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if attempt == maxRetries {
					break
				}

				backoff := baseBackoff * (1 << attempt)
				logger.Warn("retrying call", "attempt", attempt+1, "backoff", backoff, "error", err)

				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
			return nil, lastErr
		}
	}
}
