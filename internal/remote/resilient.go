package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/zombor/docscan/internal/document"
)

// Policy configures retries and the circuit breaker of Resilient
type Policy struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultPolicy retries three times and opens the breaker when half of at
// least five requests fail
func DefaultPolicy() Policy {
	return Policy{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()
	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return out
}

// Resilient retries unavailable errors and stops calling a store that keeps
// failing. An open breaker is reported as ErrRemoteUnavailable.
type Resilient struct {
	next    ScanStore
	policy  Policy
	breaker *gobreaker.CircuitBreaker[[]*document.Document]
}

// NewResilient wraps next
func NewResilient(next ScanStore, policy Policy) *Resilient {
	policy = policy.normalize()
	settings := gobreaker.Settings{
		Name:        "remote-scan-store",
		MaxRequests: policy.BreakerHalfOpenMaxCalls,
		Timeout:     policy.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < policy.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrRemoteUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Resilient{
		next:    next,
		policy:  policy,
		breaker: gobreaker.NewCircuitBreaker[[]*document.Document](settings),
	}
}

// UploadScan implements ScanStore
func (r *Resilient) UploadScan(ctx context.Context, doc *document.Document) error {
	_, err := r.execute(ctx, "upload", func(ctx context.Context) ([]*document.Document, error) {
		return nil, r.next.UploadScan(ctx, doc)
	})
	return err
}

// FetchScans implements ScanStore
func (r *Resilient) FetchScans(ctx context.Context) ([]*document.Document, error) {
	return r.execute(ctx, "fetch", r.next.FetchScans)
}

func (r *Resilient) execute(ctx context.Context, operation string, fn func(context.Context) ([]*document.Document, error)) ([]*document.Document, error) {
	docs, err := r.breaker.Execute(func() ([]*document.Document, error) {
		return r.withRetry(ctx, operation, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrRemoteUnavailable, err)
	}
	return docs, err
}

func (r *Resilient) withRetry(ctx context.Context, operation string, fn func(context.Context) ([]*document.Document, error)) ([]*document.Document, error) {
	backoff := r.policy.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(ErrRemoteUnavailable, err)
		}

		docs, err := fn(ctx)
		if err == nil {
			return docs, nil
		}
		if !errors.Is(err, ErrRemoteUnavailable) || attempt == r.policy.RetryMaxAttempts {
			return nil, err
		}

		wait := min(backoff, r.policy.RetryMaxBackoff)
		slog.Warn("Retrying remote operation",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", r.policy.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * r.policy.RetryMultiplier)
	}
}
