package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/letter-gateway/internal/letter"
	"github.com/vnmchuo/letter-gateway/internal/metrics"
	"github.com/vnmchuo/letter-gateway/internal/modelconfig"
	"github.com/vnmchuo/letter-gateway/internal/provider"
	"github.com/vnmchuo/letter-gateway/internal/usage"
	"github.com/vnmchuo/letter-gateway/pkg/ratelimit"
)

const (
	// MaxRequestBytes caps the letter request body.
	MaxRequestBytes = 1 << 20

	usageWriteTimeout = 5 * time.Second
)

// ConfigSource hands out the current model config snapshot.
type ConfigSource interface {
	Current() *modelconfig.ResolvedConfig
}

type Deps struct {
	Configs   ConfigSource
	Completer provider.Completer
	Usage     usage.Store
	Limiter   *ratelimit.Limiter // nil disables rate limiting
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Options   provider.Options
}

type Handler struct {
	configs   ConfigSource
	completer provider.Completer
	usage     usage.Store
	limiter   *ratelimit.Limiter
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	opts      provider.Options
}

func NewHandler(d Deps) *Handler {
	if d.Usage == nil {
		d.Usage = usage.NopStore{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("proxy")
	}
	if d.Options.MaxTokens <= 0 {
		d.Options.MaxTokens = provider.DefaultOptions().MaxTokens
	}
	return &Handler{
		configs:   d.Configs,
		completer: d.Completer,
		usage:     d.Usage,
		limiter:   d.Limiter,
		tracer:    d.Tracer,
		metrics:   d.Metrics,
		logger:    d.Logger,
		opts:      d.Options,
	}
}

func (h *Handler) HandleGenerateLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := h.logger.With().Str("request_id", requestID).Logger()

	var req letter.Request
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"detail": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(ctx, "proxy.generate_letter")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	client := clientKey(r)
	allowed, err := h.limiter.Allow(ctx, client, h.opts.MaxTokens)
	if err != nil {
		logger.Warn().Err(err).Msg("rate limiter unavailable")
	}
	if err != nil || !allowed {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "rate limit exceeded"})
		return
	}
	if status, err := h.limiter.Status(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("rate limit status unavailable")
	} else if status != nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(status.Remaining, 10))
	}

	// One snapshot for the whole request; a concurrent refresh does not affect it.
	cfg := h.configs.Current()
	var modelURI string
	if cfg != nil {
		modelURI = cfg.ModelURI()
		span.SetAttributes(attribute.String("model_uri", modelURI))
	}

	opts := h.opts
	opts.Temperature = letter.Temperature

	start := time.Now()
	resp, err := h.completer.SendCompletionRequest(ctx, cfg, letter.BuildMessages(req), opts)
	elapsed := time.Since(start)

	var tokens provider.Usage
	if err == nil {
		tokens = resp.Usage()
	}
	h.metrics.ObserveCompletion(elapsed, tokens.InputTokens, tokens.CompletionTokens, err)

	usageLog := &usage.Log{
		RequestID:        requestID,
		ModelURI:         modelURI,
		Outcome:          metrics.Outcome(err),
		InputTokens:      tokens.InputTokens,
		CompletionTokens: tokens.CompletionTokens,
		LatencyMs:        elapsed.Milliseconds(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), usageWriteTimeout)
		defer cancel()
		if logErr := h.usage.LogUsage(ctx, usageLog); logErr != nil {
			logger.Warn().Err(logErr).Msg("failed to log usage")
		}
	}()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("letter generation failed")
		if IsOpen(err) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	text, err := resp.Text()
	if err != nil {
		logger.Error().Err(err).Msg("letter generation returned no text")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	logger.Info().Dur("elapsed", elapsed).Int64("total_tokens", tokens.TotalTokens).Msg("letter generated")
	writeJSON(w, http.StatusOK, map[string]string{"generated_letter": text})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := time.Now()
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid 'from' date format (use RFC3339)"})
			return
		}
	}

	if toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid 'to' date format (use RFC3339)"})
			return
		}
	}

	logs, err := h.usage.ListUsage(ctx, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	summary, err := h.usage.Summarize(ctx, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests":    summary.Requests,
		"input_tokens":      summary.InputTokens,
		"completion_tokens": summary.CompletionTokens,
		"logs":              logs,
		"from":              from,
		"to":                to,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
