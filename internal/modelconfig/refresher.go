package modelconfig

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultRefreshInterval keeps bearer tokens well inside their validity window.
const DefaultRefreshInterval = 12 * time.Hour

// Holder publishes the current ResolvedConfig. Readers take a snapshot with
// Current and keep using it for the whole request; a swap does not affect them.
type Holder struct {
	cfg atomic.Pointer[ResolvedConfig]
}

func NewHolder(cfg *ResolvedConfig) *Holder {
	h := &Holder{}
	if cfg != nil {
		h.cfg.Store(cfg)
	}
	return h
}

// Current returns nil until the first successful resolution.
func (h *Holder) Current() *ResolvedConfig { return h.cfg.Load() }

func (h *Holder) Store(cfg *ResolvedConfig) { h.cfg.Store(cfg) }

// RefreshObserver is notified of every refresh attempt.
type RefreshObserver interface {
	ObserveRefresh(err error)
}

// Refresher rebuilds the config on a fixed interval and swaps it into a Holder.
// Refreshes run on a single goroutine and never overlap.
type Refresher struct {
	resolve  func(ctx context.Context) (*ResolvedConfig, error)
	holder   *Holder
	interval time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	observer RefreshObserver
}

type RefresherOption func(*Refresher)

func WithRefreshLogger(l zerolog.Logger) RefresherOption {
	return func(r *Refresher) { r.logger = l }
}

func WithTracer(t trace.Tracer) RefresherOption {
	return func(r *Refresher) { r.tracer = t }
}

func WithObserver(o RefreshObserver) RefresherOption {
	return func(r *Refresher) { r.observer = o }
}

// NewRefresher builds a Refresher that calls resolver.Resolve(opts) each cycle.
func NewRefresher(resolver *Resolver, opts Options, holder *Holder, interval time.Duration, ropts ...RefresherOption) *Refresher {
	return NewRefresherFunc(func(ctx context.Context) (*ResolvedConfig, error) {
		return resolver.Resolve(ctx, opts)
	}, holder, interval, ropts...)
}

func NewRefresherFunc(resolve func(ctx context.Context) (*ResolvedConfig, error), holder *Holder, interval time.Duration, ropts ...RefresherOption) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Refresher{
		resolve:  resolve,
		holder:   holder,
		interval: interval,
		logger:   zerolog.Nop(),
		tracer:   noop.NewTracerProvider().Tracer("modelconfig"),
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r
}

// Refresh resolves once and, on success, swaps the new config in. On failure
// the previous config stays in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "modelconfig.refresh")
	defer span.End()

	cfg, err := r.resolve(ctx)
	if r.observer != nil {
		r.observer.ObserveRefresh(err)
	}
	if err != nil {
		span.RecordError(err)
		r.logger.Error().Err(err).Msg("model config refresh failed, keeping previous config")
		return err
	}
	r.holder.Store(cfg)
	r.logger.Info().Stringer("config", cfg).Msg("model config refreshed")
	return nil
}

// Run refreshes every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}
