package usage

import (
	"context"
	"time"
)

type Log struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	ModelURI         string    `json:"model_uri"`
	Outcome          string    `json:"outcome"`
	InputTokens      int64     `json:"input_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

type Summary struct {
	Requests         int64 `json:"total_requests"`
	InputTokens      int64 `json:"input_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type Store interface {
	LogUsage(ctx context.Context, log *Log) error
	ListUsage(ctx context.Context, from, to time.Time) ([]*Log, error)
	Summarize(ctx context.Context, from, to time.Time) (*Summary, error)
}

// NopStore discards logs. It is used when no database is configured.
type NopStore struct{}

func (NopStore) LogUsage(ctx context.Context, log *Log) error { return nil }

func (NopStore) ListUsage(ctx context.Context, from, to time.Time) ([]*Log, error) {
	return nil, nil
}

func (NopStore) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	return &Summary{}, nil
}
