package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Policy bounds every model call: attempts, backoff, per-call timeout and rate.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
	// Limiter is shared by every call using this policy. Nil disables rate limiting.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// DefaultPolicy returns 3 attempts with a doubling backoff from 1s and a 60s call timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		MaxBackoff:  8 * time.Second,
		CallTimeout: 60 * time.Second,
	}
}

// NewLimiter returns a limiter allowing requestsPerMinute calls, or nil when the rate is not positive.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), 1)
}

// Do runs fn under the policy. Transient failures are retried; the final error
// wraps ErrUnavailable.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.BaseBackoff
	var lastErr error

	for i := 0; i < attempts; i++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("%w: %s: rate limiter: %w", ErrUnavailable, op, err)
			}
		}
		out, err := p.call(ctx, fn)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsTransient(err) || i == attempts-1 {
			break
		}
		logger.Warn(
			"Model call failed, will retry.",
			"operation", op,
			"attempt", i+1,
			"maxAttempts", attempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, op, ctx.Err())
		}
	}
	return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, op, lastErr)
}

func (p Policy) call(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if p.CallTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

// IsTransient reports whether a failed call is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRefusal) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection reset", "connection refused", "broken pipe", "tls handshake timeout", "unexpected eof", "http status 5"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type retryingGenerator struct {
	base   Generator
	policy Policy
}

// WithRetry wraps a Generator so that every call runs under the policy.
func WithRetry(base Generator, policy Policy) Generator {
	if base == nil {
		return nil
	}
	return retryingGenerator{base: base, policy: policy}
}

func (r retryingGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return r.policy.Do(ctx, string(req.Task), func(ctx context.Context) (string, error) {
		return r.base.Generate(ctx, req)
	})
}

type retryingVision struct {
	base   Vision
	policy Policy
}

// VisionWithRetry wraps a Vision so that every call runs under the policy.
func VisionWithRetry(base Vision, policy Policy) Vision {
	if base == nil {
		return nil
	}
	return retryingVision{base: base, policy: policy}
}

func (r retryingVision) InterpretChart(ctx context.Context, req ChartRequest) (string, error) {
	return r.policy.Do(ctx, "chart_interpretation", func(ctx context.Context) (string, error) {
		return r.base.InterpretChart(ctx, req)
	})
}
