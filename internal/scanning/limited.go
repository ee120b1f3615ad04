package scanning

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/time/rate"
)

// Limited wraps a Recognizer with a token bucket so hosted models are not
// called faster than their quota allows
type Limited struct {
	next    Recognizer
	limiter *rate.Limiter
}

// NewLimited allows perSecond requests with the given burst
func NewLimited(next Recognizer, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// RecognizeText waits for a token and delegates
func (l *Limited) RecognizeText(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for recognition slot: %w", err)
	}
	return l.next.RecognizeText(ctx, img, opts)
}

// Close closes the wrapped recognizer
func (l *Limited) Close() error {
	return l.next.Close()
}
