package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vnmchuo/letter-gateway/internal/apierr"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
)

// Breaker fails fast while the completion upstream keeps failing. It never
// retries; a rejected call makes no outbound request.
type Breaker struct {
	next provider.Completer
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next provider.Completer) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: upstreamHealthy,
	}
	return &Breaker{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) SendCompletionRequest(ctx context.Context, cfg *modelconfig.ResolvedConfig, messages []provider.Message, opts provider.Options) (*provider.CompletionResponse, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.SendCompletionRequest(ctx, cfg, messages, opts)
	})
	if err != nil {
		return nil, err
	}
	return result.(*provider.CompletionResponse), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsOpen reports whether err came from the breaker rejecting a call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// upstreamHealthy counts caller-side failures as successes: bad config,
// cancelled requests and 4xx answers other than 429 say nothing about upstream health.
func upstreamHealthy(err error) bool {
	if err == nil || apierr.IsConfig(err) || errors.Is(err, context.Canceled) {
		return true
	}
	var ce *apierr.CompletionError
	if errors.As(err, &ce) {
		return ce.StatusCode < http.StatusInternalServerError && ce.StatusCode != http.StatusTooManyRequests
	}
	return false
}
